package headhunter

import (
	"context"
	"fmt"
)

// EmployerPayload is the raw employer response, limited to the fields we consume.
type EmployerPayload struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// GetEmployer fetches one employer by the id taken from a vacancy payload.
func (c *Client) GetEmployer(ctx context.Context, id string) (*EmployerPayload, error) {
	var employer EmployerPayload
	if err := c.getJSON(ctx, fmt.Sprintf("/employers/%s", id), nil, &employer); err != nil {
		return nil, err
	}

	return &employer, nil
}
