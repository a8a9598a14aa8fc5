package headhunter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/entity"
)

const (
	negotiationsPath = "/negotiations"

	statusActive        = "active"
	stateInterview      = "interview"
	participantEmployer = "employer"
)

// Negotiation is one application thread attached to a vacancy.
type Negotiation struct {
	ID    string `json:"id"`
	State struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"state"`
	Vacancy struct {
		ID           string `json:"id"`
		AlternateURL string `json:"alternate_url"`
	} `json:"vacancy"`
}

// Message is one entry of a negotiation thread.
type Message struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Author struct {
		ParticipantType string `json:"participant_type"`
	} `json:"author"`
}

type itemsPage struct {
	Items   []any `json:"items"`
	Found   int   `json:"found"`
	Pages   int   `json:"pages"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

// GetNegotiations fetches one page of negotiations filtered by status.
func (c *Client) GetNegotiations(ctx context.Context, status string, page int) ([]*Negotiation, int, error) {
	q := url.Values{}
	q.Set("status", status)
	q.Set("page", strconv.Itoa(page))
	// Set per_page max as possible. It should be faster.
	q.Set("per_page", perPage)

	var resp itemsPage
	if err := c.getJSON(ctx, negotiationsPath, q, &resp); err != nil {
		return nil, 0, err
	}

	var negotiations []*Negotiation
	if err := decodeItems(resp.Items, &negotiations); err != nil {
		return nil, 0, err
	}

	return negotiations, resp.Pages, nil
}

// GetNegotiationMessages fetches the thread messages for one negotiation,
// oldest first.
func (c *Client) GetNegotiationMessages(ctx context.Context, id string) ([]*Message, error) {
	var resp itemsPage
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s/messages", negotiationsPath, id), nil, &resp); err != nil {
		return nil, err
	}

	var messages []*Message
	if err := decodeItems(resp.Items, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GoodResponses walks active negotiations and collects up to quantity
// applicant-authored opening messages from threads that reached the interview
// stage. A page-fetch timeout ends the walk gracefully: it signals "no more
// data", not an error. Openers written by the employer do not qualify.
func (c *Client) GoodResponses(ctx context.Context, quantity int) ([]entity.ResponseToVacancy, error) {
	var candidates []*Negotiation

	for page := 0; len(candidates) < quantity; page++ {
		pageCtx, cancel := context.WithTimeout(ctx, c.PageTimeout)
		negotiations, pages, err := c.GetNegotiations(pageCtx, statusActive, page)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				c.logger.Debug("negotiations page timed out, stopping pagination", zap.Int("page", page))
				break
			}
			return nil, err
		}

		for _, n := range negotiations {
			if n.State.ID != stateInterview {
				continue
			}
			candidates = append(candidates, n)
			if len(candidates) == quantity {
				break
			}
		}

		if page >= pages-1 {
			break
		}
	}

	responses := make([]entity.ResponseToVacancy, 0, len(candidates))
	for _, n := range candidates {
		messages, err := c.GetNegotiationMessages(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		if len(messages) == 0 {
			continue
		}

		opener := messages[0]
		if opener.Author.ParticipantType == participantEmployer {
			c.logger.Debug("skipping employer-authored opener", zap.String("negotiation", n.ID))
			continue
		}

		quality := true
		responses = append(responses, entity.ResponseToVacancy{
			URLVacancy:  n.Vacancy.AlternateURL,
			VacancyHHID: n.Vacancy.ID,
			Message:     opener.Text,
			Quality:     &quality,
		})
	}

	return responses, nil
}

// ApplyToVacancy posts a cover letter as a new negotiation. Never retried.
func (c *Client) ApplyToVacancy(ctx context.Context, resumeID, vacancyID, message string) error {
	data := map[string]string{
		"resume_id":  resumeID,
		"vacancy_id": vacancyID,
		"message":    message,
	}

	return c.postForm(ctx, negotiationsPath, data)
}

// decodeItems maps loosely typed page items into a typed slice.
func decodeItems(items []any, target any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:  target,
		TagName: "json",
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	return decoder.Decode(items)
}
