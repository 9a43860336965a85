package linkedin

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/goliatone/go-social"
)

type userInfo struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (u userInfo) toAccountInfo() *social.AccountInfo {
	name := u.Name
	if name == "" {
		name = u.GivenName + " " + u.FamilyName
	}
	return &social.AccountInfo{
		ID:      u.Sub,
		Name:    name,
		Handle:  u.Email,
		Picture: u.Picture,
	}
}

type shareCommentary struct {
	Text string `json:"text"`
}

type shareMedia struct {
	Status      string           `json:"status"`
	OriginalURL string           `json:"originalUrl"`
	Description *shareCommentary `json:"description,omitempty"`
}

type shareContent struct {
	ShareCommentary    shareCommentary `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
	Media              []shareMedia    `json:"media,omitempty"`
}

type ugcPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

func newShare(author string, post social.Post) ugcPost {
	content := shareContent{
		ShareCommentary:    shareCommentary{Text: post.Content},
		ShareMediaCategory: "NONE",
	}

	link := post.Link
	if link == "" && len(post.Media) > 0 {
		link = post.Media[0].URL
	}
	if link != "" {
		media := shareMedia{Status: "READY", OriginalURL: link}
		if post.Title != "" {
			media.Description = &shareCommentary{Text: post.Title}
		}
		content.ShareMediaCategory = "ARTICLE"
		content.Media = []shareMedia{media}
	}

	return ugcPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]shareContent{
			"com.linkedin.ugc.ShareContent": content,
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": post.Option("visibility", "PUBLIC"),
		},
	}
}

type ugcPostResponse struct {
	ID string `json:"id"`
}

type socialActions struct {
	LikesSummary struct {
		TotalLikes int64 `json:"totalLikes"`
	} `json:"likesSummary"`
	CommentsSummary struct {
		AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
	} `json:"commentsSummary"`
}

func encode(payload any) (io.Reader, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}
