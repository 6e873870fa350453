package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alexanderramin/studygen/internal/domain"
)

// ID decodes identifiers the backend sends either as strings or as numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON keeps numeric ids numeric on the way back to the server.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type identityResponse struct {
	ID         ID     `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
}

func (r identityResponse) toDomain() (domain.Session, error) {
	if r.ID == "" {
		return domain.Unauthenticated, fmt.Errorf("identity payload has no id")
	}
	name := r.Username
	if name == "" {
		name = r.Email
	}
	return domain.Session{
		UserID:      string(r.ID),
		DisplayName: name,
		Email:       r.Email,
		Role:        domain.ParseRole(r.Role),
		Verified:    r.IsVerified,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type uploadResponse struct {
	FileID ID `json:"file_id"`
}

type scanResponse struct {
	FileID ID     `json:"file_id"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// ScanReport is the backend's verdict on an uploaded document.
type ScanReport struct {
	FileRef string
	Status  domain.ScanStatus
	Detail  string
}

type generateRequest struct {
	Prompt          string `json:"prompt"`
	StudyMaterialID ID     `json:"study_material_id"`
	Difficulty      string `json:"difficulty"`
	NumQuestions    int    `json:"num_questions"`
}

type generateResponse struct {
	TestID   ID            `json:"test_id"`
	Metadata *testMetadata `json:"metadata"`
}

type testMetadata struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Difficulty   string `json:"difficulty"`
	NumQuestions int    `json:"num_questions"`
}

// Generated is the outcome of a generation request.
type Generated struct {
	TestID   string
	Metadata domain.TestMetadata
}

type questionPayload struct {
	ID      ID       `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type testPayload struct {
	ID          ID                `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Questions   []questionPayload `json:"questions"`
}

func (p testPayload) toDomain() *domain.Test {
	t := &domain.Test{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Questions:   make([]domain.Question, 0, len(p.Questions)),
	}
	for _, q := range p.Questions {
		t.Questions = append(t.Questions, domain.Question{
			ID:      string(q.ID),
			Text:    q.Text,
			Options: q.Options,
		})
	}
	return t
}

type submitRequest struct {
	TestID  ID                `json:"testId"`
	Answers map[string]string `json:"answers"`
}

type resultPayload struct {
	TestID      ID              `json:"test_id"`
	TestName    string          `json:"test_name"`
	Score       float64         `json:"score"`
	PerQuestion map[string]bool `json:"per_question"`
	SubmittedAt *time.Time      `json:"submitted_at"`
}

func (p resultPayload) toDomain() domain.SubmissionResult {
	return domain.SubmissionResult{
		TestID:      string(p.TestID),
		TestName:    p.TestName,
		Score:       p.Score,
		Correctness: p.PerQuestion,
		SubmittedAt: p.SubmittedAt,
	}
}
