package garth

import (
	"context"
	"encoding/json"
)

// SocialProfile is the subset of the profile document most callers
// need. The full document is available via Client.Profile.
type SocialProfile struct {
	ID          int64  `json:"id"`
	ProfileID   int64  `json:"profileId"`
	DisplayName string `json:"displayName"`
	UserName    string `json:"userName"`
	FullName    string `json:"fullName"`
	Location    string `json:"location"`
}

// SocialProfile fetches the account's social profile.
func (c *Client) SocialProfile(ctx context.Context) (*SocialProfile, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	data, err := s.Get(ctx, "/userprofile-service/socialProfile", nil)
	if err != nil {
		return nil, err
	}
	var p SocialProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrParse("invalid social profile response", err)
	}
	return &p, nil
}

// UserSettings fetches the account's user settings document. The shape
// is large and version-dependent, so it is returned raw.
func (c *Client) UserSettings(ctx context.Context) (json.RawMessage, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, "/userprofile-service/userprofile/user-settings", nil)
}
