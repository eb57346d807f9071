package api

import (
	"net/http"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

type submitRequest struct {
	Answers []models.AnswerDetail `json:"answers"`
}

func (h *handlers) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.Answers.Submit(r.Context(), services.SubmitRequest{
		UserID:          actor(r).ID,
		QuestionnaireID: pathID(r),
		Choices:         req.Answers,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCreated(w, r, "answer.submitted", res)
}

func (h *handlers) listMyAnswers(w http.ResponseWriter, r *http.Request) {
	views, err := h.Answers.ListMine(r.Context(), actor(r).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, views)
}

func (h *handlers) getAnswer(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	a, err := h.Answers.Get(r.Context(), pathID(r), u.ID, u.Role)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, a)
}

func (h *handlers) answerType(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	v, err := h.Answers.ComputeType(r.Context(), pathID(r), u.ID, u.Role)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, v)
}
