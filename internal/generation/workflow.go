// Package generation turns an aggregated context into a cover letter and
// supports iterative correction. The workflow is a two-branch dispatch:
// Generate consumes a fresh context, Regenerate consumes the prior checkpoint
// (or a supplied fresh context) plus user comments. Each branch is terminal
// and writes a new checkpoint.
package generation

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/ai"
	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
	"github.com/spigell/hh-coverbot/internal/logger"
)

//go:embed prompt_generate.md
var generateTemplate string

//go:embed prompt_regenerate.md
var regenerateTemplate string

const promptPreviewLen = 200

type Workflow struct {
	completer   ai.Completer
	checkpoints Checkpoints
	logger      *zap.Logger
	now         func() time.Time
}

func NewWorkflow(completer ai.Completer, checkpoints Checkpoints, logger *zap.Logger) *Workflow {
	return &Workflow{
		completer:   completer,
		checkpoints: checkpoints,
		logger:      logger,
		now:         time.Now,
	}
}

// RegenerateRequest carries everything a correction round may supply. Context
// is optional: without it the prior checkpoint is the source of truth, and its
// absence is a hard error, because a correction needs an original to correct.
type RegenerateRequest struct {
	UserID   string
	Context  *entity.GenerationContext
	Response string
	Comments string
}

// Generate produces a cover letter from a fresh context and checkpoints the
// result so a later regeneration can resume without re-aggregating.
func (w *Workflow) Generate(ctx context.Context, gctx *entity.GenerationContext) (*entity.ResponseToVacancy, error) {
	prompt, err := buildPrompt(generateTemplate, gctx, "", "")
	if err != nil {
		return nil, err
	}

	text, err := w.complete(ctx, gctx, prompt)
	if err != nil {
		return nil, err
	}

	state := &entity.WorkflowState{
		Context:   *gctx,
		Response:  text,
		UpdatedAt: w.now(),
	}
	if err := w.checkpoints.Put(ctx, w.key(gctx), state); err != nil {
		return nil, err
	}

	return responseFrom(gctx, text), nil
}

// Regenerate produces a corrected cover letter. The checkpoint read completes
// before any branching decision. Without a prior checkpoint and without a
// fresh context the call fails with ErrMissingState rather than silently
// falling back to a plain generation.
func (w *Workflow) Regenerate(ctx context.Context, req RegenerateRequest) (*entity.ResponseToVacancy, error) {
	gctx := req.Context
	response := req.Response
	if gctx == nil {
		state, err := w.checkpoints.Latest(ctx, req.UserID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return nil, errs.ErrMissingState
			}
			return nil, err
		}

		gctx = &state.Context
		if response == "" {
			response = state.Response
		}
	}

	if response == "" {
		return nil, errs.ErrMissingState
	}

	prompt, err := buildPrompt(regenerateTemplate, gctx, response, req.Comments)
	if err != nil {
		return nil, err
	}

	text, err := w.complete(ctx, gctx, prompt)
	if err != nil {
		return nil, err
	}

	state := &entity.WorkflowState{
		Context:   *gctx,
		Response:  text,
		Comments:  req.Comments,
		UpdatedAt: w.now(),
	}
	if err := w.checkpoints.Put(ctx, w.key(gctx), state); err != nil {
		return nil, err
	}

	return responseFrom(gctx, text), nil
}

func (w *Workflow) key(gctx *entity.GenerationContext) Key {
	return Key{UserID: gctx.UserID, VacancyID: gctx.Vacancy.HHID}
}

func (w *Workflow) complete(ctx context.Context, gctx *entity.GenerationContext, prompt string) (string, error) {
	w.logger.Debug("completion request",
		zap.String("user_id", gctx.UserID),
		zap.String("vacancy_id", gctx.Vacancy.HHID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, promptPreviewLen)),
	)

	text, err := w.completer.Complete(ctx, prompt)
	if err != nil {
		// The model is a black box; its failures reach the caller unretried.
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", errors.New("completion returned empty text")
	}

	return text, nil
}

func responseFrom(gctx *entity.GenerationContext, text string) *entity.ResponseToVacancy {
	return &entity.ResponseToVacancy{
		URLVacancy:  gctx.Vacancy.URL,
		VacancyHHID: gctx.Vacancy.HHID,
		ResumeHHID:  gctx.Resume.HHID,
		Message:     text,
	}
}

func buildPrompt(template string, gctx *entity.GenerationContext, response, comments string) (string, error) {
	replacements := map[string]any{
		"{{VACANCY_JSON}}":        gctx.Vacancy,
		"{{RESUME_JSON}}":         gctx.Resume,
		"{{EMPLOYER_JSON}}":       gctx.Employer,
		"{{RULES_JSON}}":          gctx.UserRules,
		"{{GOOD_RESPONSES_JSON}}": gctx.GoodResponses,
	}

	prompt := template
	for placeholder, value := range replacements {
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		prompt = strings.ReplaceAll(prompt, placeholder, string(encoded))
	}

	prompt = strings.ReplaceAll(prompt, "{{RESPONSE}}", response)
	prompt = strings.ReplaceAll(prompt, "{{COMMENTS}}", comments)

	return prompt, nil
}
