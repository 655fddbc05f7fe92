package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"family-vault/internal/session"
	"family-vault/internal/storage"
)

type startRequest struct {
	SubjectName string `json:"subject_name" validate:"required,max=200"`
}

// resumeRequest names a saved interview by record id or by its location.
type resumeRequest struct {
	RecordID string `json:"record_id" validate:"required_without=Location"`
	Location string `json:"location"`
}

type textRequest struct {
	Text string `json:"text" validate:"max=20000"`
}

type recordingRequest struct {
	Recording *bool `json:"recording" validate:"required"`
}

type languageRequest struct {
	Language string `json:"language" validate:"required"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.deps.Sessions.Start(r.Context(), req.SubjectName)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, view)
}

func (s *Server) resumeSession(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	id := req.RecordID
	if id == "" {
		id = storage.IDOf(req.Location)
	}
	location, err := s.deps.Records.LocationOf(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	view, err := s.deps.Sessions.Resume(r.Context(), location)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, s.deps.Sessions.Get)
}

func (s *Server) skipFollowups(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, s.deps.Sessions.SkipFollowups)
}

func (s *Server) cancelFollowups(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, s.deps.Sessions.CancelFollowups)
}

func (s *Server) previousFollowup(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, s.deps.Sessions.PreviousFollowup)
}

func (s *Server) reopen(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, s.deps.Sessions.ReopenLastQuestion)
}

func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, s.deps.Sessions.Back)
}

func (s *Server) skip(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, s.deps.Sessions.Skip)
}

func (s *Server) submitMain(w http.ResponseWriter, r *http.Request) {
	s.textOp(w, r, s.deps.Sessions.SubmitMain)
}

func (s *Server) submitFollowup(w http.ResponseWriter, r *http.Request) {
	s.textOp(w, r, s.deps.Sessions.SubmitFollowup)
}

func (s *Server) setRecording(w http.ResponseWriter, r *http.Request) {
	var req recordingRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.deps.Sessions.SetRecording(r.Context(), chi.URLParam(r, "id"), *req.Recording)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) setLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.deps.Sessions.SetLanguage(r.Context(), chi.URLParam(r, "id"), req.Language)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

// save writes the interview and releases the session unless ?exit=false.
func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	exit := r.URL.Query().Get("exit") != "false"
	result, err := s.deps.Sessions.Save(r.Context(), chi.URLParam(r, "id"), exit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Sessions.Finish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) discardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Discard(chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sessionOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (session.View, error)) {
	view, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) textOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (session.View, error)) {
	var req textRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := op(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}
