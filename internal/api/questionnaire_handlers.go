package api

import (
	"net/http"

	"github.com/zzy10151020/MBTI-System-sub000/internal/middleware"
	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

type questionnaireRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Published   *bool   `json:"published"`
}

func (q questionnaireRequest) input() services.QuestionnaireInput {
	return services.QuestionnaireInput{Title: q.Title, Description: q.Description, Published: q.Published}
}

type optionRequest struct {
	Content *string `json:"content"`
	Score   *int    `json:"score"`
}

func (o optionRequest) input() services.OptionInput {
	return services.OptionInput{Content: o.Content, Score: o.Score}
}

type questionRequest struct {
	Content   *string           `json:"content"`
	Dimension *models.Dimension `json:"dimension"`
	Order     int               `json:"order"`
	Options   []optionRequest   `json:"options"`
}

func (q questionRequest) input() services.QuestionInput {
	in := services.QuestionInput{Content: q.Content, Dimension: q.Dimension, Order: q.Order}
	for _, o := range q.Options {
		in.Options = append(in.Options, o.input())
	}
	return in
}

type reorderRequest struct {
	QuestionIDs []string `json:"question_ids"`
}

func (h *handlers) listQuestionnaires(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	all := r.URL.Query().Get("all")
	page, err := h.Questionnaires.List(r.Context(), actor(r).Role, all == "1" || all == "true", limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, page)
}

func (h *handlers) getQuestionnaire(w http.ResponseWriter, r *http.Request) {
	q, err := h.Questionnaires.Get(r.Context(), pathID(r), actor(r).Role)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, q)
}

func (h *handlers) createQuestionnaire(w http.ResponseWriter, r *http.Request) {
	var req questionnaireRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.Questionnaires.Create(r.Context(), actor(r), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCreated(w, r, "created", q)
}

func (h *handlers) updateQuestionnaire(w http.ResponseWriter, r *http.Request) {
	var req questionnaireRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.Questionnaires.Update(r.Context(), actor(r), pathID(r), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, q)
}

func (h *handlers) deleteQuestionnaire(w http.ResponseWriter, r *http.Request) {
	res, err := h.Questionnaires.Delete(r.Context(), actor(r), pathID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, r, http.StatusOK, "deleted", res)
}

func (h *handlers) addQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.Questionnaires.AddQuestion(r.Context(), actor(r), pathID(r), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCreated(w, r, "created", q)
}

func (h *handlers) reorderQuestions(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	n, err := h.Questionnaires.ReorderQuestions(r.Context(), actor(r), pathID(r), req.QuestionIDs)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, map[string]int{"reordered": n})
}

func (h *handlers) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.Questionnaires.UpdateQuestion(r.Context(), actor(r), pathID(r), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, q)
}

func (h *handlers) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.Questionnaires.DeleteQuestion(r.Context(), actor(r), pathID(r)); err != nil {
		fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, r, http.StatusOK, "deleted", nil)
}

func (h *handlers) addOption(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.Questionnaires.AddOption(r.Context(), actor(r), pathID(r), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCreated(w, r, "created", o)
}

func (h *handlers) updateOption(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.Questionnaires.UpdateOption(r.Context(), actor(r), pathID(r), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, o)
}

func (h *handlers) deleteOption(w http.ResponseWriter, r *http.Request) {
	if err := h.Questionnaires.DeleteOption(r.Context(), actor(r), pathID(r)); err != nil {
		fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, r, http.StatusOK, "deleted", nil)
}

func (h *handlers) audit(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	entries, err := h.Questionnaires.Audit(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, entries)
}
