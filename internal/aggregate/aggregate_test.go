package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/headhunter"
)

type fakeAPI struct {
	vacancyErr       error
	employerErr      error
	resumeErr        error
	goodResponsesErr error
	anonymousVacancy bool

	employerRequested string
}

func (f *fakeAPI) GetVacancy(_ context.Context, id string) (*headhunter.VacancyPayload, error) {
	if f.vacancyErr != nil {
		return nil, f.vacancyErr
	}
	payload := &headhunter.VacancyPayload{
		ID:           id,
		Name:         "Go Developer",
		AlternateURL: "https://hh.ru/vacancy/" + id,
		Description:  "Backend services",
	}
	if !f.anonymousVacancy {
		payload.Employer.ID = "777"
	}
	return payload, nil
}

func (f *fakeAPI) GetEmployer(_ context.Context, id string) (*headhunter.EmployerPayload, error) {
	f.employerRequested = id
	if f.employerErr != nil {
		return nil, f.employerErr
	}
	return &headhunter.EmployerPayload{ID: id, Name: "Acme"}, nil
}

func (f *fakeAPI) GetResume(_ context.Context, id string) (*headhunter.ResumePayload, error) {
	if f.resumeErr != nil {
		return nil, f.resumeErr
	}
	return &headhunter.ResumePayload{
		ID:        id,
		FirstName: "Ivan",
		LastName:  "Petrov",
		Contact: []headhunter.ContactPayload{
			{Kind: "phone", Value: "+7 900 000-00-00"},
		},
	}, nil
}

func (f *fakeAPI) GoodResponses(context.Context, int) ([]entity.ResponseToVacancy, error) {
	if f.goodResponsesErr != nil {
		return nil, f.goodResponsesErr
	}
	quality := true
	return []entity.ResponseToVacancy{{VacancyHHID: "1", Message: "hello", Quality: &quality}}, nil
}

func newService(api *fakeAPI) *Service {
	return New(api, map[string]string{"rule_1": "max 800 chars"}, zap.NewNop())
}

func TestCollectAssemblesContext(t *testing.T) {
	api := &fakeAPI{}
	s := newService(api)

	gctx, err := s.Collect(context.Background(), CollectInput{
		UserID:    "42",
		VacancyID: "125537679",
		ResumeID:  "resume-1",
	})
	require.NoError(t, err)

	require.Equal(t, "42", gctx.UserID)
	require.Equal(t, "125537679", gctx.Vacancy.HHID)
	require.Equal(t, "resume-1", gctx.Resume.HHID)
	require.NotNil(t, gctx.Employer)
	require.Equal(t, "777", gctx.Employer.HHID)
	require.Equal(t, map[string]string{"rule_1": "max 800 chars"}, gctx.UserRules)
	require.Len(t, gctx.GoodResponses, 1)

	// Employer fetch is driven by the vacancy's nested employer id.
	require.Equal(t, "777", api.employerRequested)
}

func TestCollectAnonymousVacancySkipsEmployer(t *testing.T) {
	api := &fakeAPI{anonymousVacancy: true}
	s := newService(api)

	gctx, err := s.Collect(context.Background(), CollectInput{
		UserID:    "42",
		VacancyID: "125537679",
		ResumeID:  "resume-1",
	})
	require.NoError(t, err)

	require.Nil(t, gctx.Employer)
	require.Empty(t, api.employerRequested)
	require.Equal(t, "resume-1", gctx.Resume.HHID)
	require.Len(t, gctx.GoodResponses, 1)
}

func TestCollectFailsFastOnVacancy(t *testing.T) {
	boom := errors.New("boom")
	s := newService(&fakeAPI{vacancyErr: boom})

	_, err := s.Collect(context.Background(), CollectInput{UserID: "42", VacancyID: "1", ResumeID: "r"})
	require.ErrorIs(t, err, boom)
}

func TestCollectNoPartialResultOnBranchFailure(t *testing.T) {
	for name, api := range map[string]*fakeAPI{
		"employer":       {employerErr: errors.New("employer down")},
		"resume":         {resumeErr: errors.New("resume down")},
		"good_responses": {goodResponsesErr: errors.New("negotiations down")},
	} {
		gctx, err := newService(api).Collect(context.Background(), CollectInput{
			UserID:    "42",
			VacancyID: "1",
			ResumeID:  "r",
		})
		require.Error(t, err, name)
		require.Nil(t, gctx, name)
	}
}
