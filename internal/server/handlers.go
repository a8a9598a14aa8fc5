package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/aggregate"
	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
	"github.com/spigell/hh-coverbot/internal/generation"
	"github.com/spigell/hh-coverbot/internal/headhunter"
	"github.com/spigell/hh-coverbot/internal/normalize"
)

func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, r, &errs.UserInputError{Msg: "user_id is required"})
		return
	}

	state, err := s.signer.Sign(userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"url": s.auth.AuthorizationURL(state),
	})
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		s.writeError(w, r, &errs.UserInputError{Msg: "code and state are required"})
		return
	}

	subject, err := s.signer.Parse(state)
	if err != nil {
		s.writeError(w, r, &errs.UserInputError{Msg: "invalid or expired state"})
		return
	}

	tokens, err := s.auth.ExchangeCode(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.SaveTokens(r.Context(), subject, tokens); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.bootstrapUser(r, subject)

	s.logger.Info("subject authorized", zap.String("subject", subject))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
}

// bootstrapUser snapshots the subject's profile and resumes into the database.
// Failures are logged and swallowed: the authorization itself already
// succeeded, and the snapshot is refreshed on the next login anyway.
func (s *Server) bootstrapUser(r *http.Request, subject string) {
	if s.users == nil {
		return
	}

	client := s.clients(subject)

	me, err := client.GetMe(r.Context())
	if err != nil {
		s.logger.Warn("profile fetch failed", zap.String("subject", subject), zap.Error(err))
		return
	}

	raws, err := client.GetResumes(r.Context())
	if err != nil {
		s.logger.Warn("resumes fetch failed", zap.String("subject", subject), zap.Error(err))
		return
	}

	resumes := make([]entity.Resume, 0, len(raws))
	for _, raw := range raws {
		resume, err := normalize.Resume(raw)
		if err != nil {
			s.logger.Warn("skipping malformed resume", zap.String("subject", subject), zap.Error(err))
			continue
		}
		resumes = append(resumes, *resume)
	}

	user, err := normalize.User(me, resumes)
	if err != nil {
		s.logger.Warn("profile normalization failed", zap.String("subject", subject), zap.Error(err))
		return
	}

	if existing, err := s.users.GetByHHID(r.Context(), user.HHID); err == nil {
		user.ID = existing.ID
		_, err = s.users.Update(r.Context(), user)
		if err != nil {
			s.logger.Warn("profile update failed", zap.String("subject", subject), zap.Error(err))
		}
		return
	}

	if _, err := s.users.Create(r.Context(), user); err != nil && !errors.Is(err, errs.ErrAlreadyExists) {
		s.logger.Warn("profile create failed", zap.String("subject", subject), zap.Error(err))
	}
}

type generateRequest struct {
	UserID     string `json:"user_id"`
	VacancyURL string `json:"vacancy_url"`
	ResumeID   string `json:"resume_id"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &errs.UserInputError{Msg: "malformed request body"})
		return
	}
	if req.UserID == "" || req.ResumeID == "" {
		s.writeError(w, r, &errs.UserInputError{Msg: "user_id and resume_id are required"})
		return
	}

	vacancyID, err := headhunter.ExtractVacancyID(req.VacancyURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	gctx, err := s.collect(r, req.UserID, vacancyID, req.ResumeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	response, err := s.workflow.Generate(r.Context(), gctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

type regenerateRequest struct {
	UserID     string `json:"user_id"`
	VacancyURL string `json:"vacancy_url,omitempty"`
	ResumeID   string `json:"resume_id,omitempty"`
	Response   string `json:"response,omitempty"`
	Comments   string `json:"comments"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &errs.UserInputError{Msg: "malformed request body"})
		return
	}
	if req.UserID == "" {
		s.writeError(w, r, &errs.UserInputError{Msg: "user_id is required"})
		return
	}

	wreq := generation.RegenerateRequest{
		UserID:   req.UserID,
		Response: req.Response,
		Comments: req.Comments,
	}

	// A vacancy URL in the request means "correct against fresh data" instead
	// of resuming from the checkpoint.
	if req.VacancyURL != "" {
		vacancyID, err := headhunter.ExtractVacancyID(req.VacancyURL)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		gctx, err := s.collect(r, req.UserID, vacancyID, req.ResumeID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		wreq.Context = gctx
	}

	response, err := s.workflow.Regenerate(r.Context(), wreq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

type submitRequest struct {
	UserID    string `json:"user_id"`
	VacancyID string `json:"vacancy_id"`
	ResumeID  string `json:"resume_id"`
	Message   string `json:"message"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &errs.UserInputError{Msg: "malformed request body"})
		return
	}
	if req.UserID == "" || req.VacancyID == "" || req.ResumeID == "" || req.Message == "" {
		s.writeError(w, r, &errs.UserInputError{Msg: "user_id, vacancy_id, resume_id and message are required"})
		return
	}

	client := s.clients(req.UserID)
	if err := client.ApplyToVacancy(r.Context(), req.ResumeID, req.VacancyID, req.Message); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("response submitted",
		zap.String("user_id", req.UserID),
		zap.String("vacancy_id", req.VacancyID),
	)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
}

func (s *Server) collect(r *http.Request, userID, vacancyID, resumeID string) (*entity.GenerationContext, error) {
	svc := aggregate.New(s.clients(userID), s.rules, s.logger)

	return svc.Collect(r.Context(), aggregate.CollectInput{
		UserID:    userID,
		VacancyID: vacancyID,
		ResumeID:  resumeID,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("writing response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var inputErr *errs.UserInputError
	var exchangeErr *errs.AuthExchangeError
	switch {
	case errors.As(err, &inputErr):
		status = http.StatusBadRequest
	case errors.As(err, &exchangeErr):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrMissingState):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrAuthRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
