package models

import "time"

// Role is the access level of a user account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Dimension is one of the four MBTI axes a question scores toward.
type Dimension string

const (
	DimensionEI Dimension = "EI"
	DimensionSN Dimension = "SN"
	DimensionTF Dimension = "TF"
	DimensionJP Dimension = "JP"
)

// Dimensions lists the axes in the order their letters appear in a type code.
var Dimensions = []Dimension{DimensionEI, DimensionSN, DimensionTF, DimensionJP}

func (d Dimension) Valid() bool {
	switch d {
	case DimensionEI, DimensionSN, DimensionTF, DimensionJP:
		return true
	}
	return false
}

// Poles returns the letter chosen for a positive sum and the letter chosen otherwise.
func (d Dimension) Poles() (positive, negative byte) {
	if !d.Valid() {
		return 0, 0
	}
	return d[0], d[1]
}

// User is an account that can answer questionnaires or, as ADMIN, author them.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	PassHash  []byte    `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Questionnaire groups an ordered set of questions.
type Questionnaire struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	CreatorID   string      `json:"creator_id"`
	Published   bool        `json:"published"`
	CreatedAt   time.Time   `json:"created_at"`
	Questions   []*Question `json:"questions,omitempty"`
}

// Question belongs to one questionnaire and scores toward exactly one dimension.
type Question struct {
	ID              string    `json:"id"`
	QuestionnaireID string    `json:"questionnaire_id"`
	Content         string    `json:"content"`
	Dimension       Dimension `json:"dimension"`
	Order           int       `json:"order"`
	Options         []*Option `json:"options,omitempty"`
}

// Option is a selectable answer carrying a signed unit score.
type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Content    string `json:"content"`
	Score      int    `json:"score"`
}

// ValidScore reports whether v is an allowed option score.
func ValidScore(v int) bool { return v == -1 || v == 1 }

// Answer is one user's completed pass through one questionnaire.
type Answer struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	QuestionnaireID string         `json:"questionnaire_id"`
	CreatedAt       time.Time      `json:"created_at"`
	Details         []AnswerDetail `json:"details,omitempty"`
}

// AnswerDetail maps one question to the option chosen for it.
type AnswerDetail struct {
	QuestionID string `json:"question_id"`
	OptionID   string `json:"option_id"`
}

type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}
