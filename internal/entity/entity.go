// Package entity defines the domain objects shared by the API client,
// the aggregation service and the generation workflow.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuthTokens is one issued OAuth token pair. The pair stored for a subject is
// always the most recently issued one.
type AuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past (or within margin of) its expiry.
func (t *AuthTokens) Expired(now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(t.ExpiresAt)
}

// JobExperience is a single position inside a resume. It has no lifecycle of
// its own: it always belongs to exactly one resume.
type JobExperience struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
	Description string `json:"description"`
}

// Resume belongs to exactly one user.
type Resume struct {
	ID         uuid.UUID       `json:"id"`
	HHID       string          `json:"hh_id" validate:"required"`
	Name       string          `json:"name"`
	Surname    string          `json:"surname"`
	Experience []JobExperience `json:"experience"`
	Skills     []string        `json:"skills"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email"`
}

// User is the platform account owner. Resumes are owned: deleting the user
// deletes them too.
type User struct {
	ID       uuid.UUID `json:"id"`
	HHID     string    `json:"hh_id"`
	Name     string    `json:"name"`
	MidName  string    `json:"mid_name,omitempty"`
	LastName string    `json:"last_name"`
	Phone    string    `json:"phone,omitempty"`
	Email    string    `json:"email,omitempty"`
	Resumes  []Resume  `json:"resumes,omitempty"`
}

// ExperienceLevel is the platform's required-experience dictionary entry.
type ExperienceLevel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Vacancy is fetched fresh per generation request and not cached beyond it.
type Vacancy struct {
	ID          uuid.UUID       `json:"id"`
	HHID        string          `json:"hh_id" validate:"required"`
	URL         string          `json:"url_vacancy"`
	Name        string          `json:"name"`
	Experience  ExperienceLevel `json:"experience"`
	Description string          `json:"description"`
	KeySkills   []string        `json:"key_skills"`
	EmployerID  string          `json:"employer_id"`
}

// Employer is fetched on demand, keyed by the employer id taken from a vacancy.
type Employer struct {
	ID          uuid.UUID `json:"id"`
	HHID        string    `json:"hh_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// ResponseToVacancy is a cover letter tied to a vacancy and a resume by their
// platform ids, because submission requires platform-native identifiers.
// Quality is set only when classifying historical negotiations; it stays nil
// for freshly generated text.
type ResponseToVacancy struct {
	ID          uuid.UUID `json:"id"`
	URLVacancy  string    `json:"url_vacancy"`
	VacancyHHID string    `json:"vacancy_id"`
	ResumeHHID  string    `json:"resume_id"`
	Message     string    `json:"message"`
	Quality     *bool     `json:"quality,omitempty"`
}

// GenerationContext is the bundle of everything the workflow needs to produce
// one cover letter. Built fresh per generation call, consumed once.
type GenerationContext struct {
	UserID        string              `json:"user_id" validate:"required"`
	Vacancy       Vacancy             `json:"vacancy" validate:"required"`
	Resume        Resume              `json:"resume" validate:"required"`
	Employer      *Employer           `json:"employer,omitempty"`
	UserRules     map[string]string   `json:"user_rules"`
	GoodResponses []ResponseToVacancy `json:"good_responses,omitempty"`
}

// WorkflowState is the durable checkpoint written after each generation, so a
// later regeneration can resume without re-aggregating.
type WorkflowState struct {
	Context   GenerationContext `json:"context"`
	Response  string            `json:"response"`
	Comments  string            `json:"comments,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}
