package social

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	goerrors "github.com/goliatone/go-errors"
)

// PlatformError captures a failed platform call in a caller safe form.
// Raw provider payloads are reduced to Message and kept out of Error().
type PlatformError struct {
	Platform  Platform
	Operation string
	Status    int
	Code      string
	Message   string
	Err       error
}

// NewPlatformError builds a PlatformError for the given status.
func NewPlatformError(platform Platform, operation string, status int, message string, err error) *PlatformError {
	return &PlatformError{
		Platform:  platform,
		Operation: operation,
		Status:    status,
		Message:   message,
		Err:       redactURLError(err),
	}
}

func (e *PlatformError) Error() string {
	if e == nil {
		return "platform error"
	}

	name := e.Platform.DisplayName()
	msg := e.Message

	switch e.Status {
	case http.StatusUnauthorized:
		if msg == "" {
			msg = "please reconnect your account"
		}
		return fmt.Sprintf("%s authentication failed: %s", name, msg)
	case http.StatusForbidden:
		if msg == "" {
			msg = "missing required permissions"
		}
		return fmt.Sprintf("%s permission denied: %s", name, msg)
	case http.StatusTooManyRequests:
		if msg == "" {
			msg = "please try again later"
		}
		return fmt.Sprintf("%s rate limit exceeded: %s", name, msg)
	}

	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "request failed"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s API error: %s", name, msg)
	}
	return fmt.Sprintf("%s API error (%d): %s", name, e.Status, msg)
}

// Kind returns the sentinel error matching the HTTP status.
func (e *PlatformError) Kind() *goerrors.Error {
	if e == nil {
		return ErrPlatformAPI
	}
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrPlatformUnauthorized
	case http.StatusForbidden:
		return ErrPlatformForbidden
	case http.StatusTooManyRequests:
		return ErrPlatformRateLimited
	default:
		return ErrPlatformAPI
	}
}

// Unwrap exposes both the sentinel kind and the transport cause.
func (e *PlatformError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := []error{e.Kind()}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Metadata returns the structured details of the error.
func (e *PlatformError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Platform != "" {
		meta["platform"] = string(e.Platform)
	}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	return meta
}

// NotImplementedError decorates ErrNotImplemented with the platform and operation.
func NotImplementedError(platform Platform, operation string) error {
	return fmt.Errorf("%w: %s is not implemented for %s", ErrNotImplemented, operation, platform.DisplayName())
}

// decorate guarantees a platform prefix on errors leaving an adapter.
func decorate(platform Platform, operation string, err error) error {
	if err == nil {
		return nil
	}

	var perr *PlatformError
	if errors.As(err, &perr) {
		return err
	}
	if errors.Is(err, ErrNotImplemented) || errors.Is(err, ErrCredentialsNotConfigured) {
		return err
	}

	return NewPlatformError(platform, operation, 0, "", err)
}

// redactURLError strips the query and fragment from the URL carried by a
// transport error. Graph token calls send credentials in the query string.
func redactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{Op: uerr.Op, URL: redactURL(uerr.URL), Err: uerr.Err}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	return u.String()
}
