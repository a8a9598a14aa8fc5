package headhunter

import "context"

// MePayload is the raw /me response, limited to the fields we consume.
type MePayload struct {
	ID         string `json:"id,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// GetMe fetches the authenticated user's profile.
func (c *Client) GetMe(ctx context.Context) (*MePayload, error) {
	var me MePayload
	if err := c.getJSON(ctx, "/me", nil, &me); err != nil {
		return nil, err
	}

	return &me, nil
}
