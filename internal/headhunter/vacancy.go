package headhunter

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spigell/hh-coverbot/internal/errs"
)

// VacancyPayload is the raw vacancy response, limited to the fields we consume.
type VacancyPayload struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Experience struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"experience,omitempty"`
	Description string `json:"description,omitempty"`
	KeySkills   []struct {
		Name string `json:"name,omitempty"`
	} `json:"key_skills,omitempty"`
	Employer struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employer,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
}

// GetVacancy fetches one vacancy by its platform id.
func (c *Client) GetVacancy(ctx context.Context, id string) (*VacancyPayload, error) {
	var vacancy VacancyPayload
	if err := c.getJSON(ctx, fmt.Sprintf("/vacancies/%s", id), nil, &vacancy); err != nil {
		return nil, err
	}

	return &vacancy, nil
}

// vacancyURLPattern is the canonical shape of a vacancy link: any host,
// /vacancy/<digits> optionally followed by a slash, query or fragment.
var vacancyURLPattern = regexp.MustCompile(`/vacancy/(\d+)(?:[/?#]|$)`)

// ExtractVacancyID pulls the numeric vacancy id out of a user-supplied URL.
// A mismatch is the user's problem, not ours.
func ExtractVacancyID(rawURL string) (string, error) {
	matches := vacancyURLPattern.FindStringSubmatch(rawURL)
	if matches == nil {
		return "", &errs.UserInputError{Msg: fmt.Sprintf("%q does not look like a vacancy link", rawURL)}
	}

	return matches[1], nil
}
