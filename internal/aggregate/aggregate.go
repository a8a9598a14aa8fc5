// Package aggregate assembles the generation context for one cover letter:
// a sequential vacancy fetch (its employer id drives the next step) followed
// by a concurrent fan-out for employer, resume and good-responses data, joined
// fail-fast.
package aggregate

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/headhunter"
	"github.com/spigell/hh-coverbot/internal/normalize"
)

// defaultGoodResponses bounds how many historical examples are collected.
const defaultGoodResponses = 10

// API is the slice of the platform client the service needs.
type API interface {
	GetVacancy(ctx context.Context, id string) (*headhunter.VacancyPayload, error)
	GetEmployer(ctx context.Context, id string) (*headhunter.EmployerPayload, error)
	GetResume(ctx context.Context, id string) (*headhunter.ResumePayload, error)
	GoodResponses(ctx context.Context, quantity int) ([]entity.ResponseToVacancy, error)
}

type Service struct {
	api      API
	rules    map[string]string
	logger   *zap.Logger
	validate *validator.Validate

	GoodResponsesLimit int
}

// New builds the service. The rules map is the user's static authoring rules,
// embedded verbatim into every generation context.
func New(api API, rules map[string]string, logger *zap.Logger) *Service {
	return &Service{
		api:                api,
		rules:              rules,
		logger:             logger,
		validate:           validator.New(),
		GoodResponsesLimit: defaultGoodResponses,
	}
}

// CollectInput identifies what to aggregate and for whom.
type CollectInput struct {
	UserID    string
	VacancyID string
	ResumeID  string
}

// Collect builds one GenerationContext. Any failing branch fails the whole
// call: a partial context is never returned.
func (s *Service) Collect(ctx context.Context, in CollectInput) (*entity.GenerationContext, error) {
	rawVacancy, err := s.api.GetVacancy(ctx, in.VacancyID)
	if err != nil {
		return nil, err
	}

	vacancy, err := normalize.Vacancy(rawVacancy)
	if err != nil {
		return nil, err
	}

	var (
		employer      *entity.Employer
		resume        *entity.Resume
		goodResponses []entity.ResponseToVacancy
	)

	g, gctx := errgroup.WithContext(ctx)

	// Anonymous vacancies carry no employer block; the context is legal
	// without one.
	if vacancy.EmployerID != "" {
		g.Go(func() error {
			raw, err := s.api.GetEmployer(gctx, vacancy.EmployerID)
			if err != nil {
				return err
			}
			employer, err = normalize.Employer(raw)
			return err
		})
	}

	g.Go(func() error {
		raw, err := s.api.GetResume(gctx, in.ResumeID)
		if err != nil {
			return err
		}
		resume, err = normalize.Resume(raw)
		return err
	})

	g.Go(func() error {
		var err error
		goodResponses, err = s.api.GoodResponses(gctx, s.GoodResponsesLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &entity.GenerationContext{
		UserID:        in.UserID,
		Vacancy:       *vacancy,
		Resume:        *resume,
		Employer:      employer,
		UserRules:     s.rules,
		GoodResponses: goodResponses,
	}

	if err := s.validate.Struct(result); err != nil {
		return nil, err
	}

	s.logger.Debug("generation context assembled",
		zap.String("user_id", in.UserID),
		zap.String("vacancy_id", vacancy.HHID),
		zap.Int("good_responses", len(goodResponses)),
	)

	return result, nil
}
