// Package normalize maps raw hh.ru payloads into domain entities. Functions
// here are pure: no I/O, no side effects, and the same payload always yields
// a structurally equal entity. A missing required field is a data-quality
// failure, never retried.
package normalize

import (
	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
	"github.com/spigell/hh-coverbot/internal/headhunter"
)

const (
	contactKindPhone = "phone"
	contactKindEmail = "email"
)

// User maps the /me payload plus the already normalized resumes.
func User(me *headhunter.MePayload, resumes []entity.Resume) (*entity.User, error) {
	if me.ID == "" {
		return nil, &errs.NormalizationError{Entity: "user", Field: "id"}
	}
	if me.FirstName == "" {
		return nil, &errs.NormalizationError{Entity: "user", Field: "first_name"}
	}
	if me.LastName == "" {
		return nil, &errs.NormalizationError{Entity: "user", Field: "last_name"}
	}

	return &entity.User{
		HHID:     me.ID,
		Name:     me.FirstName,
		MidName:  me.MiddleName,
		LastName: me.LastName,
		Phone:    me.Phone,
		Email:    me.Email,
		Resumes:  resumes,
	}, nil
}

// Resume maps a raw resume payload. The contact list of {kind, value} pairs
// collapses into phone and email by kind.
func Resume(raw *headhunter.ResumePayload) (*entity.Resume, error) {
	if raw.ID == "" {
		return nil, &errs.NormalizationError{Entity: "resume", Field: "id"}
	}
	if raw.FirstName == "" {
		return nil, &errs.NormalizationError{Entity: "resume", Field: "first_name"}
	}
	if len(raw.Contact) == 0 {
		return nil, &errs.NormalizationError{Entity: "resume", Field: "contact"}
	}

	var phone, email string
	for _, contact := range raw.Contact {
		switch contact.Kind {
		case contactKindPhone:
			phone = contact.Value
		case contactKindEmail:
			email = contact.Value
		}
	}

	experience := make([]entity.JobExperience, 0, len(raw.Experience))
	for _, job := range raw.Experience {
		if job.Company == "" {
			return nil, &errs.NormalizationError{Entity: "resume", Field: "experience.company"}
		}
		experience = append(experience, entity.JobExperience{
			Company:     job.Company,
			Position:    job.Position,
			Start:       job.Start,
			End:         job.End,
			Description: job.Description,
		})
	}

	return &entity.Resume{
		HHID:       raw.ID,
		Name:       raw.FirstName,
		Surname:    raw.LastName,
		Experience: experience,
		Skills:     raw.SkillSet,
		Phone:      phone,
		Email:      email,
	}, nil
}

// Vacancy maps a raw vacancy payload. The employer id is pulled from the
// nested employer block: the employer fetch is always driven off a previously
// fetched vacancy.
func Vacancy(raw *headhunter.VacancyPayload) (*entity.Vacancy, error) {
	if raw.ID == "" {
		return nil, &errs.NormalizationError{Entity: "vacancy", Field: "id"}
	}
	if raw.Name == "" {
		return nil, &errs.NormalizationError{Entity: "vacancy", Field: "name"}
	}

	skills := make([]string, 0, len(raw.KeySkills))
	for _, skill := range raw.KeySkills {
		skills = append(skills, skill.Name)
	}

	return &entity.Vacancy{
		HHID: raw.ID,
		URL:  raw.AlternateURL,
		Name: raw.Name,
		Experience: entity.ExperienceLevel{
			ID:   raw.Experience.ID,
			Name: raw.Experience.Name,
		},
		Description: raw.Description,
		KeySkills:   skills,
		EmployerID:  raw.Employer.ID,
	}, nil
}

// Employer maps a raw employer payload.
func Employer(raw *headhunter.EmployerPayload) (*entity.Employer, error) {
	if raw.ID == "" {
		return nil, &errs.NormalizationError{Entity: "employer", Field: "id"}
	}
	if raw.Name == "" {
		return nil, &errs.NormalizationError{Entity: "employer", Field: "name"}
	}

	return &entity.Employer{
		HHID:        raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
	}, nil
}
