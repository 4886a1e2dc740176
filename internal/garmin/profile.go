// ABOUTME: Social profile lookup for the signed-in account.
// ABOUTME: Supplies the display name and profile PK other endpoints need.
package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const socialProfilePath = "/userprofile-service/socialProfile"

// Profile is the subset of the social profile this server uses.
type Profile struct {
	ProfileID   int64  `json:"profileId"`
	DisplayName string `json:"displayName"`
	FullName    string `json:"fullName"`
	UserName    string `json:"userName"`
}

// SocialProfile fetches the account profile. It is also the cheapest call
// that proves the tokens are accepted.
func (c *Client) SocialProfile(ctx context.Context) (*Profile, error) {
	raw, err := c.ConnectAPI(ctx, http.MethodGet, socialProfilePath, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get social profile: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("get social profile: empty response")
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode social profile: %w", err)
	}
	if p.DisplayName == "" {
		return nil, fmt.Errorf("get social profile: missing display name")
	}
	return &p, nil
}
