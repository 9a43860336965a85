package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var hexPart = regexp.MustCompile(`^[0-9a-f]*$`)

func newBox(t *testing.T) *Box {
	t.Helper()
	box, err := New(testKey)
	require.NoError(t, err)
	return box
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box := newBox(t)

	for _, msg := range []string{"a", "access-token-123", "hola mundo ✓ secreto", strings.Repeat("x", 4096)} {
		ct, err := box.Encrypt(msg)
		require.NoError(t, err)

		pt, err := box.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, msg, pt)
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	box := newBox(t)

	first, err := box.Encrypt("same")
	require.NoError(t, err)
	second, err := box.Encrypt("same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	for _, ct := range []string{first, second} {
		pt, err := box.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, "same", pt)
	}
}

func TestEncryptFraming(t *testing.T) {
	box := newBox(t)

	ct, err := box.Encrypt("framing")
	require.NoError(t, err)

	parts := strings.Split(ct, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], ivSize*2)
	assert.Len(t, parts[1], tagSize*2)
	assert.Len(t, parts[2], len("framing")*2)
	for _, p := range parts {
		assert.Regexp(t, hexPart, p)
	}
}

// A value sealed by a plain AES-GCM implementation with the same framing
// must stay decryptable.
func TestDecryptExternallyFramedValue(t *testing.T) {
	key, err := hex.DecodeString(testKey)
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	aead, err := cipher.NewGCMWithNonceSize(block, 16)
	require.NoError(t, err)

	iv := []byte("0123456789abcdef")
	sealed := aead.Seal(nil, iv, []byte("stored-secret"), nil)
	ct, tag := sealed[:len(sealed)-16], sealed[len(sealed)-16:]
	framed := hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct)

	pt, err := newBox(t).Decrypt(framed)
	require.NoError(t, err)
	assert.Equal(t, "stored-secret", pt)
}

func TestEncryptRejectsEmpty(t *testing.T) {
	_, err := newBox(t).Encrypt("")
	assert.ErrorIs(t, err, ErrEmptyPlaintext)
}

func TestDecryptRejectsWrongPartCount(t *testing.T) {
	box := newBox(t)

	for _, input := range []string{"", "abc", "aa:bb", "aa:bb:cc:dd"} {
		_, err := box.Decrypt(input)
		require.Error(t, err, input)
		var rich *goerrors.Error
		require.ErrorAs(t, err, &rich)
		assert.Equal(t, "invalid encrypted data format", rich.Message)
	}
}

func TestDecryptRejectsBadHex(t *testing.T) {
	box := newBox(t)

	_, err := box.Decrypt("zz:" + strings.Repeat("0", 32) + ":00")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = box.Decrypt(strings.Repeat("0", 32) + ":abcd:00")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecryptDetectsTamper(t *testing.T) {
	box := newBox(t)

	ct, err := box.Encrypt("top secret")
	require.NoError(t, err)

	parts := strings.Split(ct, ":")
	raw, err := hex.DecodeString(parts[2])
	require.NoError(t, err)
	raw[0] ^= 0x01
	parts[2] = hex.EncodeToString(raw)

	_, err = box.Decrypt(strings.Join(parts, ":"))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptWithOtherKeyFails(t *testing.T) {
	ct, err := newBox(t).Encrypt("secret")
	require.NoError(t, err)

	otherKey, err := GenerateKey()
	require.NoError(t, err)
	other, err := New(otherKey)
	require.NoError(t, err)

	_, err = other.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewValidatesKey(t *testing.T) {
	for _, key := range []string{"", "abc", strings.Repeat("0", 62), strings.Repeat("zz", 32), strings.Repeat("0", 66)} {
		_, err := New(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		DefaultKeyEnv: testKey,
		"OTHER_KEY":   "",
	}
	lookup := func(k string) string { return env[k] }

	box, err := FromEnv(lookup, "")
	require.NoError(t, err)
	require.NotNil(t, box)

	_, err = FromEnv(lookup, "OTHER_KEY")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Contains(t, err.Error(), "OTHER_KEY")
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, 64)

	_, err = New(key)
	assert.NoError(t, err)
}

func TestSafeVariantsPassNil(t *testing.T) {
	box := newBox(t)

	out, err := box.SafeEncrypt(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = box.SafeDecrypt(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	value := "refresh"
	enc, err := box.SafeEncrypt(&value)
	require.NoError(t, err)
	require.NotNil(t, enc)

	dec, err := box.SafeDecrypt(enc)
	require.NoError(t, err)
	require.NotNil(t, dec)
	assert.Equal(t, value, *dec)
}

func TestConcurrentUse(t *testing.T) {
	box := newBox(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ct, err := box.Encrypt("parallel")
			if !assert.NoError(t, err) {
				return
			}
			pt, err := box.Decrypt(ct)
			assert.NoError(t, err)
			assert.Equal(t, "parallel", pt)
		}()
	}
	wg.Wait()
}
