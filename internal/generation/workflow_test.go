package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
)

type fakeCompleter struct {
	prompts []string
	reply   string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func sampleContext() *entity.GenerationContext {
	return &entity.GenerationContext{
		UserID: "42",
		Vacancy: entity.Vacancy{
			HHID: "125537679",
			URL:  "https://hh.ru/vacancy/125537679",
			Name: "Go Developer",
		},
		Resume: entity.Resume{
			HHID: "resume-1",
			Name: "Ivan",
		},
		Employer: &entity.Employer{
			HHID: "777",
			Name: "Acme",
		},
		UserRules: map[string]string{"rule_1": "max 800 chars"},
	}
}

func TestGenerateProducesResponseAndCheckpoint(t *testing.T) {
	completer := &fakeCompleter{reply: "Dear Acme, ..."}
	checkpoints := NewMemoryCheckpoints()
	w := NewWorkflow(completer, checkpoints, zap.NewNop())

	gctx := sampleContext()
	response, err := w.Generate(context.Background(), gctx)
	require.NoError(t, err)

	require.Equal(t, "https://hh.ru/vacancy/125537679", response.URLVacancy)
	require.Equal(t, "125537679", response.VacancyHHID)
	require.Equal(t, "resume-1", response.ResumeHHID)
	require.NotEmpty(t, response.Message)
	require.Nil(t, response.Quality)

	state, err := checkpoints.Get(context.Background(), Key{UserID: "42", VacancyID: "125537679"})
	require.NoError(t, err)
	require.Equal(t, "Dear Acme, ...", state.Response)
	require.Equal(t, "125537679", state.Context.Vacancy.HHID)
}

func TestGeneratePromptEmbedsContext(t *testing.T) {
	completer := &fakeCompleter{reply: "letter"}
	w := NewWorkflow(completer, NewMemoryCheckpoints(), zap.NewNop())

	_, err := w.Generate(context.Background(), sampleContext())
	require.NoError(t, err)

	require.Len(t, completer.prompts, 1)
	prompt := completer.prompts[0]
	require.Contains(t, prompt, "Go Developer")
	require.Contains(t, prompt, "max 800 chars")
	require.Contains(t, prompt, "Acme")
	require.NotContains(t, prompt, "{{")
}

func TestRegenerateFromCheckpoint(t *testing.T) {
	completer := &fakeCompleter{reply: "draft-1"}
	checkpoints := NewMemoryCheckpoints()
	w := NewWorkflow(completer, checkpoints, zap.NewNop())

	_, err := w.Generate(context.Background(), sampleContext())
	require.NoError(t, err)

	completer.reply = "draft-2, shorter"
	response, err := w.Regenerate(context.Background(), RegenerateRequest{
		UserID:   "42",
		Comments: "shorten it",
	})
	require.NoError(t, err)
	require.Equal(t, "125537679", response.VacancyHHID)
	require.Equal(t, "resume-1", response.ResumeHHID)
	require.NotEqual(t, "draft-1", response.Message)

	// The correction prompt embeds the prior draft and the comments.
	last := completer.prompts[len(completer.prompts)-1]
	require.Contains(t, last, "draft-1")
	require.Contains(t, last, "shorten it")

	state, err := checkpoints.Get(context.Background(), Key{UserID: "42", VacancyID: "125537679"})
	require.NoError(t, err)
	require.Equal(t, "draft-2, shorter", state.Response)
	require.Equal(t, "shorten it", state.Comments)
}

func TestRegenerateWithoutCheckpointFails(t *testing.T) {
	w := NewWorkflow(&fakeCompleter{reply: "x"}, NewMemoryCheckpoints(), zap.NewNop())

	_, err := w.Regenerate(context.Background(), RegenerateRequest{
		UserID:   "42",
		Comments: "shorten it",
	})
	require.ErrorIs(t, err, errs.ErrMissingState)
}

func TestRegenerateWithFreshContext(t *testing.T) {
	completer := &fakeCompleter{reply: "corrected"}
	checkpoints := NewMemoryCheckpoints()
	w := NewWorkflow(completer, checkpoints, zap.NewNop())

	// No checkpoint exists, but a fresh context plus the prior response are supplied.
	response, err := w.Regenerate(context.Background(), RegenerateRequest{
		UserID:   "42",
		Context:  sampleContext(),
		Response: "old draft",
		Comments: "make it formal",
	})
	require.NoError(t, err)
	require.Equal(t, "corrected", response.Message)

	_, err = checkpoints.Get(context.Background(), Key{UserID: "42", VacancyID: "125537679"})
	require.NoError(t, err)
}

func TestRegenerateUsesLatestDraft(t *testing.T) {
	completer := &fakeCompleter{reply: "first"}
	checkpoints := NewMemoryCheckpoints()
	w := NewWorkflow(completer, checkpoints, zap.NewNop())

	older := w.now().Add(-time.Hour)
	w.now = func() time.Time { return older }
	_, err := w.Generate(context.Background(), sampleContext())
	require.NoError(t, err)

	w.now = time.Now
	newer := sampleContext()
	newer.Vacancy.HHID = "999"
	newer.Vacancy.URL = "https://hh.ru/vacancy/999"
	completer.reply = "second"
	_, err = w.Generate(context.Background(), newer)
	require.NoError(t, err)

	completer.reply = "second corrected"
	response, err := w.Regenerate(context.Background(), RegenerateRequest{UserID: "42", Comments: "tweak"})
	require.NoError(t, err)

	// Drafts are keyed per vacancy; the correction applies to the newest one.
	require.Equal(t, "999", response.VacancyHHID)

	old, err := checkpoints.Get(context.Background(), Key{UserID: "42", VacancyID: "125537679"})
	require.NoError(t, err)
	require.Equal(t, "first", old.Response)
}

func TestCompleterFailureIsSurfaced(t *testing.T) {
	modelErr := errors.New("model not found")
	completer := &fakeCompleter{err: modelErr}
	w := NewWorkflow(completer, NewMemoryCheckpoints(), zap.NewNop())

	_, err := w.Generate(context.Background(), sampleContext())
	require.ErrorIs(t, err, modelErr)
	// Exactly one attempt: generation failures are never retried.
	require.Len(t, completer.prompts, 1)
}

func TestGenerateRejectsEmptyCompletion(t *testing.T) {
	completer := &fakeCompleter{reply: "   "}
	w := NewWorkflow(completer, NewMemoryCheckpoints(), zap.NewNop())

	_, err := w.Generate(context.Background(), sampleContext())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "empty"))
}
