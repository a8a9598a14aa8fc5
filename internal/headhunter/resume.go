package headhunter

import (
	"context"
	"fmt"
)

// ResumePayload is the raw resume response, limited to the fields we consume.
type ResumePayload struct {
	ID         string              `json:"id,omitempty"`
	Title      string              `json:"title,omitempty"`
	FirstName  string              `json:"first_name,omitempty"`
	LastName   string              `json:"last_name,omitempty"`
	Contact    []ContactPayload    `json:"contact,omitempty"`
	Experience []ExperiencePayload `json:"experience,omitempty"`
	SkillSet   []string            `json:"skill_set,omitempty"`
}

// ContactPayload is one entry of the resume contact list. The kind
// discriminates phones from emails.
type ContactPayload struct {
	Kind  string `json:"kind,omitempty"`
	Value string `json:"contact_value,omitempty"`
}

// ExperiencePayload is one job entry inside a resume.
type ExperiencePayload struct {
	Company     string `json:"company,omitempty"`
	Position    string `json:"position,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Description string `json:"description,omitempty"`
}

type resumeListResponse struct {
	Items []*ResumePayload `json:"items"`
}

// GetResumes lists the authenticated user's resumes.
func (c *Client) GetResumes(ctx context.Context) ([]*ResumePayload, error) {
	var list resumeListResponse
	if err := c.getJSON(ctx, "/resumes/mine", nil, &list); err != nil {
		return nil, err
	}

	return list.Items, nil
}

// GetResume fetches one resume with full details.
func (c *Client) GetResume(ctx context.Context, id string) (*ResumePayload, error) {
	if id == "" {
		return nil, fmt.Errorf("resume id is required")
	}

	var resume ResumePayload
	if err := c.getJSON(ctx, fmt.Sprintf("/resumes/%s", id), nil, &resume); err != nil {
		return nil, err
	}

	return &resume, nil
}
