package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/zzy10151020/MBTI-System-sub000/internal/utils"
)

// Envelope is the body shape of every JSON response.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WriteJSON writes an envelope whose message is the localized text for key.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, key string, data any) {
	locale := LocaleFromContext(r.Context())
	env := Envelope{
		Success:   status < http.StatusBadRequest,
		Message:   utils.T(locale, key),
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Printf("write response: %v", err)
	}
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, key string, data any) {
	WriteJSON(w, r, status, key, data)
}
