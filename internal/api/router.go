package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zzy10151020/MBTI-System-sub000/internal/middleware"
	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

// Deps are the collaborators the HTTP surface dispatches to. Metrics and Ping are optional.
type Deps struct {
	Auth           *services.AuthService
	Questionnaires *services.QuestionnaireService
	Answers        *services.AnswerService
	Statistics     *services.StatisticsService
	Tokens         *middleware.Tokens
	Metrics        *middleware.Metrics
	Ping           func(context.Context) error

	CORSOrigins    []string
	RequestTimeout time.Duration
	Commit         string
	BuildTime      string
}

type handlers struct {
	Deps
}

// NewRouter wires the static route table.
func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Logger, chimw.Recoverer)
	r.Use(chimw.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if d.Metrics != nil {
		r.Use(d.Metrics.Instrument)
	}
	r.Use(middleware.SecureHeaders, middleware.NoStore, middleware.LocaleMiddleware, d.Tokens.WithAuth)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, http.StatusNotFound, "error.route_not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, http.StatusMethodNotAllowed, "error.method_not_allowed", nil)
	})

	r.Get("/health", h.health)
	r.Get("/version", h.version)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", h.register)
		api.Post("/auth/login", h.login)

		api.Group(func(u chi.Router) {
			u.Use(middleware.RequireAuth)
			u.Get("/auth/me", h.me)

			u.Get("/questionnaires", h.listQuestionnaires)
			u.Get("/questionnaires/{id}", h.getQuestionnaire)
			u.Post("/questionnaires/{id}/answers", h.submitAnswer)

			u.Get("/answers/mine", h.listMyAnswers)
			u.Get("/answers/{id}", h.getAnswer)
			u.Get("/answers/{id}/type", h.answerType)
		})

		api.Group(func(a chi.Router) {
			a.Use(middleware.RequireRole(models.RoleAdmin))

			a.Post("/questionnaires", h.createQuestionnaire)
			a.Put("/questionnaires/{id}", h.updateQuestionnaire)
			a.Delete("/questionnaires/{id}", h.deleteQuestionnaire)

			a.Post("/questionnaires/{id}/questions", h.addQuestion)
			a.Put("/questionnaires/{id}/questions/order", h.reorderQuestions)
			a.Put("/questions/{id}", h.updateQuestion)
			a.Delete("/questions/{id}", h.deleteQuestion)

			a.Post("/questions/{id}/options", h.addOption)
			a.Put("/options/{id}", h.updateOption)
			a.Delete("/options/{id}", h.deleteOption)

			a.Get("/questionnaires/{id}/statistics", h.statistics)
			a.Get("/questionnaires/{id}/statistics/export", h.exportStatistics)
			a.Get("/admin/audit", h.audit)
		})
	})
	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	body := map[string]any{
		"name":       "MBTI API",
		"locale":     locale,
		"commit":     h.Commit,
		"build_time": h.BuildTime,
	}
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			logFailure(r, "health ping", err)
			body["db"] = "down"
			middleware.WriteJSON(w, r, http.StatusServiceUnavailable, "error.internal", body)
			return
		}
		body["db"] = "up"
	}
	middleware.WriteJSON(w, r, http.StatusOK, "health.ok", body)
}

func (h *handlers) version(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, r, http.StatusOK, "ok", map[string]any{
		"commit":     h.Commit,
		"build_time": h.BuildTime,
	})
}
