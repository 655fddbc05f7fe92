package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"family-vault/internal/api"
	"family-vault/internal/extractor"
	"family-vault/internal/interview"
	"family-vault/internal/storage"
	"family-vault/internal/translation"
	"family-vault/internal/voice"
)

// maxAudioBytes matches the speech-to-text upload limit.
const maxAudioBytes = 25 << 20

type interviewResponse struct {
	ID       string          `json:"id"`
	Location string          `json:"location"`
	Record   *storage.Record `json:"record"`
	Summary  string          `json:"summary"`
}

type searchRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
	RecordID string `json:"record_id"`
}

type translateRequest struct {
	Text     string `json:"text" validate:"required,max=20000"`
	Language string `json:"language" validate:"required"`
}

type speechRequest struct {
	Text  string `json:"text" validate:"required,max=4096"`
	Voice string `json:"voice"`
}

func (s *Server) listInterviews(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Records.List()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"interviews": entries, "count": len(entries)})
}

func (s *Server) getInterview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")
	location, rec, err := s.readRecord(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, interviewResponse{
		ID:       id,
		Location: location,
		Record:   rec,
		Summary:  extractor.FormatForDisplay(rec.ExtractedData),
	})
}

func (s *Server) deleteInterview(w http.ResponseWriter, r *http.Request) {
	location, err := s.deps.Records.LocationOf(chi.URLParam(r, "recordID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	err = s.deps.Sessions.RecordOp(location, func() error {
		return s.deps.Records.Delete(location)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// extractInterview re-runs structured extraction over a saved record. A
// record open in a session is refused before and after the model call.
func (s *Server) extractInterview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")
	location, err := s.deps.Records.LocationOf(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var rec *storage.Record
	err = s.deps.Sessions.RecordOp(location, func() error {
		var err error
		rec, err = s.deps.Records.ReadRecord(location)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data, err := s.deps.Extractor.Extract(r.Context(), rec.SubjectName, rec.InterviewAnswers(nil))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if data == nil {
		s.fail(w, r, fmt.Errorf("%w: record has no answers to extract from", interview.ErrEmptyInput))
		return
	}

	err = s.deps.Sessions.RecordOp(location, func() error {
		var err error
		rec, err = s.deps.Records.SaveExtracted(location, data)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, interviewResponse{
		ID:       id,
		Location: location,
		Record:   rec,
		Summary:  extractor.FormatForDisplay(rec.ExtractedData),
	})
}

// search answers a question from one record, or from every record when
// no record id is given.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var (
		answer string
		err    error
	)
	if req.RecordID != "" {
		var rec *storage.Record
		if _, rec, err = s.readRecord(req.RecordID); err != nil {
			s.fail(w, r, err)
			return
		}
		answer, err = s.deps.Searcher.Answer(r.Context(), req.Question, rec)
	} else {
		var recs []*storage.Record
		if recs, err = s.allRecords(); err != nil {
			s.fail(w, r, err)
			return
		}
		answer, err = s.deps.Searcher.AnswerAcross(r.Context(), req.Question, recs)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"question": req.Question, "answer": answer})
}

func (s *Server) translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	language, ok := translation.Normalize(req.Language)
	if !ok {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported language %q", req.Language))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"language": language,
		"text":     s.deps.Translator.Translate(r.Context(), req.Text, language),
	})
}

// transcribe accepts a multipart upload with an "audio" file and an
// optional "translate" flag.
func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "could not read audio: "+err.Error())
		return
	}
	if len(audio) == 0 {
		s.respondError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	translate, _ := strconv.ParseBool(r.FormValue("translate"))
	text := s.deps.Transcriber.Transcribe(r.Context(), audio, header.Filename, translate)
	if text == "" {
		s.fail(w, r, fmt.Errorf("%w: no speech recognized", api.ErrExternalService))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"text": text, "translated": translate})
}

func (s *Server) speech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	audio, profile, err := s.deps.Speaker.Speak(r.Context(), req.Text, req.Voice)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Voice-Profile", profile.Name)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		s.logger.Warn("failed to write audio", zap.Error(err))
	}
}

func (s *Server) languages(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"languages": translation.Languages()})
}

func (s *Server) voices(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"default": voice.DefaultProfile,
		"voices":  voice.VoiceProfiles(),
	})
}

func (s *Server) readRecord(id string) (string, *storage.Record, error) {
	location, err := s.deps.Records.LocationOf(id)
	if err != nil {
		return "", nil, err
	}
	rec, err := s.deps.Records.ReadRecord(location)
	if err != nil {
		return "", nil, err
	}
	return location, rec, nil
}

// allRecords loads every readable record in listing order.
func (s *Server) allRecords() ([]*storage.Record, error) {
	entries, err := s.deps.Records.List()
	if err != nil {
		return nil, err
	}
	recs := make([]*storage.Record, 0, len(entries))
	for _, e := range entries {
		rec, err := s.deps.Records.ReadRecord(e.Location)
		if err != nil {
			s.logger.Warn("skipping record in search", zap.String("location", e.Location), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
