package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
	"github.com/spigell/hh-coverbot/internal/generation"
	"github.com/spigell/hh-coverbot/internal/headhunter"
	"github.com/spigell/hh-coverbot/internal/token"
)

type fakeAuth struct {
	exchangeErr error
	saved       map[string]*entity.AuthTokens
}

func (f *fakeAuth) AuthorizationURL(state string) string {
	return "https://hh.ru/oauth/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeAuth) ExchangeCode(_ context.Context, code string) (*entity.AuthTokens, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &entity.AuthTokens{AccessToken: "access-" + code, ExpiresIn: 3600}, nil
}

func (f *fakeAuth) SaveTokens(_ context.Context, subject string, tokens *entity.AuthTokens) error {
	if f.saved == nil {
		f.saved = map[string]*entity.AuthTokens{}
	}
	f.saved[subject] = tokens
	return nil
}

type fakeWorkflow struct {
	generateErr   error
	regenerateErr error
	lastRegen     generation.RegenerateRequest
}

func (f *fakeWorkflow) Generate(_ context.Context, gctx *entity.GenerationContext) (*entity.ResponseToVacancy, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &entity.ResponseToVacancy{
		VacancyHHID: gctx.Vacancy.HHID,
		ResumeHHID:  gctx.Resume.HHID,
		Message:     "draft for " + gctx.Vacancy.Name,
	}, nil
}

func (f *fakeWorkflow) Regenerate(_ context.Context, req generation.RegenerateRequest) (*entity.ResponseToVacancy, error) {
	f.lastRegen = req
	if f.regenerateErr != nil {
		return nil, f.regenerateErr
	}
	return &entity.ResponseToVacancy{Message: "revised draft"}, nil
}

type fakeClient struct {
	subject string

	vacancyErr error
	applied    []string
}

func (f *fakeClient) GetVacancy(_ context.Context, id string) (*headhunter.VacancyPayload, error) {
	if f.vacancyErr != nil {
		return nil, f.vacancyErr
	}
	vacancy := &headhunter.VacancyPayload{ID: id, Name: "Go developer"}
	vacancy.Employer.ID = "777"
	return vacancy, nil
}

func (f *fakeClient) GetEmployer(_ context.Context, id string) (*headhunter.EmployerPayload, error) {
	return &headhunter.EmployerPayload{ID: id, Name: "Acme"}, nil
}

func (f *fakeClient) GetResume(_ context.Context, id string) (*headhunter.ResumePayload, error) {
	return &headhunter.ResumePayload{
		ID:        id,
		FirstName: "Ivan",
		Contact:   []headhunter.ContactPayload{{Kind: "email", Value: "ivan@example.com"}},
	}, nil
}

func (f *fakeClient) GoodResponses(context.Context, int) ([]entity.ResponseToVacancy, error) {
	return nil, nil
}

func (f *fakeClient) GetMe(context.Context) (*headhunter.MePayload, error) {
	return &headhunter.MePayload{ID: f.subject, FirstName: "Ivan", LastName: "Petrov"}, nil
}

func (f *fakeClient) GetResumes(context.Context) ([]*headhunter.ResumePayload, error) {
	return nil, nil
}

func (f *fakeClient) ApplyToVacancy(_ context.Context, resumeID, vacancyID, message string) error {
	f.applied = append(f.applied, resumeID+"/"+vacancyID+"/"+message)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeAuth, *fakeWorkflow, *fakeClient) {
	t.Helper()

	auth := &fakeAuth{}
	workflow := &fakeWorkflow{}
	client := &fakeClient{}

	srv := New(auth, token.NewStateSigner([]byte("test-key")), workflow, nil,
		func(subject string) PlatformClient {
			client.subject = subject
			return client
		},
		map[string]string{"tone": "formal"}, zap.NewNop())

	return srv, auth, workflow, client
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestAuthURLAndCallback(t *testing.T) {
	srv, auth, _, _ := newTestServer(t)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/auth/url?user_id=42", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var urlResp struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &urlResp))

	parsed, err := url.Parse(urlResp.URL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	rec = doJSON(t, handler, http.MethodGet,
		"/auth/callback?code=good-code&state="+url.QueryEscape(state), "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Contains(t, auth.saved, "42")
	require.Equal(t, "access-good-code", auth.saved["42"].AccessToken)
}

func TestAuthCallbackRejectsForeignState(t *testing.T) {
	srv, auth, _, _ := newTestServer(t)

	foreign, err := token.NewStateSigner([]byte("other-key")).Sign("42")
	require.NoError(t, err)

	rec := doJSON(t, srv.Handler(), http.MethodGet,
		"/auth/callback?code=good-code&state="+url.QueryEscape(foreign), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, auth.saved)
}

func TestAuthCallbackExchangeFailure(t *testing.T) {
	srv, auth, _, _ := newTestServer(t)
	auth.exchangeErr = &errs.AuthExchangeError{Status: 400, Body: "bad code"}

	state, err := token.NewStateSigner([]byte("test-key")).Sign("42")
	require.NoError(t, err)

	rec := doJSON(t, srv.Handler(), http.MethodGet,
		"/auth/callback?code=bad&state="+url.QueryEscape(state), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, auth.saved)
}

func TestGenerate(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/ai/generate",
		`{"user_id":"42","vacancy_url":"https://hh.ru/vacancy/125537679","resume_id":"resume-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp entity.ResponseToVacancy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "125537679", resp.VacancyHHID)
	require.Equal(t, "resume-1", resp.ResumeHHID)
	require.Equal(t, "draft for Go developer", resp.Message)
}

func TestGenerateRejectsBadVacancyURL(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/ai/generate",
		`{"user_id":"42","vacancy_url":"https://hh.ru/article/12345","resume_id":"resume-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateAuthRequired(t *testing.T) {
	srv, _, _, client := newTestServer(t)
	client.vacancyErr = errs.ErrAuthRequired

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/ai/generate",
		`{"user_id":"42","vacancy_url":"https://hh.ru/vacancy/125537679","resume_id":"resume-1"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegenerateWithoutCheckpoint(t *testing.T) {
	srv, _, workflow, _ := newTestServer(t)
	workflow.regenerateErr = errs.ErrMissingState

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/ai/regenerate",
		`{"user_id":"42","comments":"shorter please"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegeneratePassesComments(t *testing.T) {
	srv, _, workflow, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/ai/regenerate",
		`{"user_id":"42","comments":"shorter please"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "42", workflow.lastRegen.UserID)
	require.Equal(t, "shorter please", workflow.lastRegen.Comments)
	require.Nil(t, workflow.lastRegen.Context)
}

func TestRegenerateWithFreshContext(t *testing.T) {
	srv, _, workflow, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/ai/regenerate",
		`{"user_id":"42","vacancy_url":"https://hh.ru/vacancy/111","resume_id":"resume-1","response":"draft-1","comments":"add skills"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, workflow.lastRegen.Context)
	require.Equal(t, "111", workflow.lastRegen.Context.Vacancy.HHID)
	require.Equal(t, "draft-1", workflow.lastRegen.Response)
}

func TestSubmit(t *testing.T) {
	srv, _, _, client := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/ai/submit",
		`{"user_id":"42","vacancy_id":"111","resume_id":"resume-1","message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"resume-1/111/hello"}, client.applied)
	require.Equal(t, "42", client.subject)
}

func TestHealthz(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
