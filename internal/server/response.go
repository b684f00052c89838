package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"folio/internal/apperr"
)

// envelope wraps every response body.
type envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
	TS    time.Time  `json:"ts"`
}

type errorBody struct {
	Kind      apperr.Kind `json:"kind"`
	Message   string      `json:"message"`
	Retriable bool        `json:"retriable"`
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.BadInput:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InsufficientFunds:
		return http.StatusUnprocessableEntity
	case apperr.Conflict, apperr.DuplicateOperation:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeOK(w http.ResponseWriter, status int, data any) {
	s.writeJSON(w, status, envelope{OK: true, Data: data, TS: time.Now().UTC()})
}

// writeError maps err to its HTTP status. Internal details stay in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.Message(err)
	if kind == apperr.Internal {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		msg = "internal error"
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Message != "" {
			msg = ae.Message
		}
	}
	s.writeFailure(w, statusOf(kind), kind, msg)
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, kind apperr.Kind, msg string) {
	s.writeJSON(w, status, envelope{
		Error: &errorBody{Kind: kind, Message: msg, Retriable: kind.Retriable()},
		TS:    time.Now().UTC(),
	})
}
