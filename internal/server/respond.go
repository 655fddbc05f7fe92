package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"family-vault/internal/api"
	"family-vault/internal/interview"
	"family-vault/internal/session"
	"family-vault/internal/storage"
)

const maxBodyBytes = 1 << 20

var (
	validate = validator.New()

	errBadRequest = errors.New("bad request")
)

type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: true, Message: message, Code: status})
}

// fail maps err onto a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, interview.ErrEmptyInput),
		errors.Is(err, session.ErrUnsupportedLanguage):
		return http.StatusBadRequest
	case errors.Is(err, interview.ErrInvalidTransition),
		errors.Is(err, session.ErrRecordInUse):
		return http.StatusConflict
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrNoRecord),
		errors.Is(err, storage.ErrRecordNotFound),
		errors.Is(err, storage.ErrInvalidID):
		return http.StatusNotFound
	case errors.Is(err, api.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v and checks its validate tags.
func decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", errBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
