package headhunter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/errs"
	"github.com/spigell/hh-coverbot/internal/retry"
)

type staticTokens struct {
	access string
	err    error
}

func (s *staticTokens) EnsureAccess(context.Context, string) (string, error) {
	return s.access, s.err
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(&staticTokens{access: "test-access"}, "42", zap.NewNop())
	c.APIURL = srv.URL
	c.policy = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Retryable: errs.Retryable}

	return c
}

func TestGetVacancy(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vacancies/125537679", r.URL.Path)
		require.Equal(t, "Bearer test-access", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "125537679",
			"name":          "Go Developer",
			"alternate_url": "https://hh.ru/vacancy/125537679",
			"experience":    map[string]string{"id": "between3And6", "name": "3-6 years"},
			"description":   "Backend services in Go",
			"key_skills":    []map[string]string{{"name": "Go"}, {"name": "PostgreSQL"}},
			"employer":      map[string]string{"id": "777", "name": "Acme"},
		})
	}))

	vacancy, err := c.GetVacancy(context.Background(), "125537679")
	require.NoError(t, err)
	require.Equal(t, "125537679", vacancy.ID)
	require.Equal(t, "777", vacancy.Employer.ID)
	require.Len(t, vacancy.KeySkills, 2)
}

func TestGetJSONClassifiesAuthError(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.GetVacancy(context.Background(), "1")

	var authErr *errs.AuthError
	require.ErrorAs(t, err, &authErr)
	require.ErrorIs(t, err, errs.ErrAuthRequired)
	// 403 is not retryable.
	require.Equal(t, int32(1), hits.Load())
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"description":"Not Found"}`))
	}))

	_, err := c.GetVacancy(context.Background(), "1")

	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, int32(1), hits.Load())
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "1"})
	}))

	vacancy, err := c.GetVacancy(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "1", vacancy.ID)
	require.Equal(t, int32(3), hits.Load())
}

func TestRequestFailsWithoutToken(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := New(&staticTokens{err: errs.ErrAuthRequired}, "42", zap.NewNop())
	c.APIURL = srv.URL

	_, err := c.GetVacancy(context.Background(), "1")
	require.ErrorIs(t, err, errs.ErrAuthRequired)
	require.Equal(t, int32(0), hits.Load())
}

func TestApplyToVacancy(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/negotiations", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		require.Equal(t, "resume-1", r.FormValue("resume_id"))
		require.Equal(t, "125537679", r.FormValue("vacancy_id"))
		require.Equal(t, "Hello!", r.FormValue("message"))
		w.WriteHeader(http.StatusCreated)
	}))

	err := c.ApplyToVacancy(context.Background(), "resume-1", "125537679", "Hello!")
	require.NoError(t, err)
}

func TestApplyToVacancyIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := c.ApplyToVacancy(context.Background(), "resume-1", "1", "Hello!")

	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, int32(1), hits.Load())
}

func TestExtractVacancyID(t *testing.T) {
	cases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://city.example.hh.ru/vacancy/125537679", want: "125537679"},
		{url: "https://hh.ru/vacancy/1?from=search", want: "1"},
		{url: "https://hh.ru/vacancy/99/", want: "99"},
		{url: "https://hh.ru/vacancy/7#anchor", want: "7"},
		{url: "https://example.com/jobs/1", wantErr: true},
		{url: "https://hh.ru/vacancy/abc", wantErr: true},
		{url: "", wantErr: true},
	}

	for _, tc := range cases {
		id, err := ExtractVacancyID(tc.url)
		if tc.wantErr {
			var inputErr *errs.UserInputError
			require.ErrorAs(t, err, &inputErr, tc.url)
			continue
		}
		require.NoError(t, err, tc.url)
		require.Equal(t, tc.want, id, tc.url)
	}
}
