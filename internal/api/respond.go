package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zzy10151020/MBTI-System-sub000/internal/middleware"
	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
	Kind   string `json:"kind,omitempty"`
	ID     string `json:"id,omitempty"`
}

// fail maps service errors onto HTTP status codes. Unrecognized errors are logged and
// answered with an opaque 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		dup     *services.DuplicateSubmissionError
		ref     *services.ReferenceNotFoundError
		partial *services.PartialBatchFailure
	)
	switch {
	case errors.As(err, &dup):
		middleware.WriteError(w, r, http.StatusConflict, "error.duplicate_submission",
			errorBody{Code: "duplicate_submission", ID: dup.QuestionnaireID})
		return
	case errors.As(err, &ref):
		middleware.WriteError(w, r, http.StatusUnprocessableEntity, "error.reference_not_found",
			errorBody{Code: "reference_not_found", Kind: ref.Kind, ID: ref.ID})
		return
	case errors.As(err, &partial):
		logFailure(r, "partial batch", err)
		middleware.WriteError(w, r, http.StatusInternalServerError, "error.partial_batch",
			errorBody{Code: "partial_batch"})
		return
	}
	if se, ok := services.AsServiceError(err); ok {
		status, key := http.StatusInternalServerError, "error.internal"
		switch se.Code {
		case services.ErrorInvalid:
			status, key = http.StatusBadRequest, "error.invalid"
		case services.ErrorUnauthorized:
			status, key = http.StatusUnauthorized, "error.unauthorized"
		case services.ErrorForbidden:
			status, key = http.StatusForbidden, "error.forbidden"
		case services.ErrorNotFound:
			status, key = http.StatusNotFound, "error.not_found"
		case services.ErrorConflict:
			status, key = http.StatusConflict, "error.conflict"
		}
		middleware.WriteError(w, r, status, key, errorBody{Code: string(se.Code), Detail: se.Message})
		return
	}
	logFailure(r, "unhandled", err)
	middleware.WriteError(w, r, http.StatusInternalServerError, "error.internal", errorBody{Code: "internal"})
}

func logFailure(r *http.Request, what string, err error) {
	log.Printf("[%s] %s %s %s: %v", chimw.GetReqID(r.Context()), r.Method, r.URL.Path, what, err)
}

func writeOK(w http.ResponseWriter, r *http.Request, data any) {
	middleware.WriteJSON(w, r, http.StatusOK, "ok", data)
}

func writeCreated(w http.ResponseWriter, r *http.Request, key string, data any) {
	middleware.WriteJSON(w, r, http.StatusCreated, key, data)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return services.NewInvalidError(fmt.Sprintf("invalid json: %v", err))
	}
	return nil
}

// actor rebuilds the caller from token claims; RequireAuth guarantees presence.
func actor(r *http.Request) *models.User {
	c, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil
	}
	return &models.User{ID: c.UID, Username: c.Username, Role: c.Role}
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, services.NewInvalidError(key + " must be an integer")
	}
	return n, nil
}

func pathID(r *http.Request) string { return chi.URLParam(r, "id") }
