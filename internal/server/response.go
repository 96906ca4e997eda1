package server

import (
	"encoding/json"
	"net/http"
	"time"

	"message-board/internal/failure"

	"go.uber.org/zap"
)

type envelope struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Meta       interface{} `json:"meta,omitempty"`
}

type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("json.Marshal: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

// writeData wraps data (and optional pagination meta) into the success envelope
func writeData(w http.ResponseWriter, logger *zap.SugaredLogger, status int, data, meta interface{}) {
	writeJSON(w, logger, status, envelope{StatusCode: status, Data: data, Meta: meta})
}

// writeError reports err to the client. Errors that are not *failure.Error are logged
// and answered with a generic 500 without their text.
func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	fe := failure.From(err)
	status := fe.Kind.Status()
	if status == http.StatusInternalServerError {
		logger.Errorf("internal error: %v", err)
	}

	writeJSON(w, logger, status, errorBody{
		StatusCode: status,
		Message:    fe.Error(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	})
}
