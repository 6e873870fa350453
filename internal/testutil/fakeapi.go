package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const fakeSessionCookie = "studygen_session"

// FakeUser is an account known to the fake backend.
type FakeUser struct {
	ID       string
	Username string
	Email    string
	Password string
	Role     string
	Verified bool
}

// FakeTest is a generated test held by the fake backend. Correct maps
// question IDs to the correct option.
type FakeTest struct {
	ID          string
	Name        string
	Description string
	Questions   []FakeQuestion
}

type FakeQuestion struct {
	ID      string
	Text    string
	Options []string
	Correct string
}

type fakeOverride struct {
	handler   http.HandlerFunc
	remaining int // 0 means forever
}

// FakeAPI is an in-process stand-in for the study backend. Routes are keyed
// as "METHOD /path" with ids replaced by "{id}", e.g. "GET /tests/{id}".
type FakeAPI struct {
	Server *httptest.Server

	mu          sync.Mutex
	users       map[string]FakeUser // by email
	sessions    map[string]string   // token -> email
	files       map[string][]byte
	scanStatus  map[string]string
	tests       map[string]*FakeTest
	results     []map[string]any
	calls       map[string]int
	overrides   map[string]*fakeOverride
	lastBodies  map[string][]byte
	nextFile    int
	nextTest    int
	nextSession int
}

// NewFakeAPI starts a fake backend that is closed when the test completes.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		users:      map[string]FakeUser{},
		sessions:   map[string]string{},
		files:      map[string][]byte{},
		scanStatus: map[string]string{},
		tests:      map[string]*FakeTest{},
		calls:      map[string]int{},
		overrides:  map[string]*fakeOverride{},
		lastBodies: map[string][]byte{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake backend.
func (f *FakeAPI) URL() string { return f.Server.URL }

// AddUser registers an account.
func (f *FakeAPI) AddUser(u FakeUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.Email] = u
}

// AddTest registers a test that can be fetched and submitted.
func (f *FakeAPI) AddTest(t FakeTest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := t
	f.tests[t.ID] = &cp
}

// SetScanStatus sets the status reported for a file ID.
func (f *FakeAPI) SetScanStatus(fileID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanStatus[fileID] = status
}

// ExpireSessions drops every server-side session, so the next call gets a 401.
func (f *FakeAPI) ExpireSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = map[string]string{}
}

// Override replaces the handler of route for the next times calls (0 = always).
func (f *FakeAPI) Override(route string, times int, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[route] = &fakeOverride{handler: h, remaining: times}
}

// FailWith makes route answer with status and body for the next times calls.
func (f *FakeAPI) FailWith(route string, times int, status int, body string) {
	f.Override(route, times, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

// Stall makes route block until the client gives up, for the next times calls.
func (f *FakeAPI) Stall(route string, times int) {
	f.Override(route, times, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
}

// Calls returns how many requests route has received.
func (f *FakeAPI) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// LastBody returns the raw body of the most recent request to route.
func (f *FakeAPI) LastBody(route string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBodies[route]
}

// LastJSON decodes the most recent body sent to route.
func (f *FakeAPI) LastJSON(t *testing.T, route string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(f.LastBody(route), &out); err != nil {
		t.Fatalf("decoding last %s body: %v", route, err)
	}
	return out
}

func routeOf(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "files" && parts[2] == "scan":
		parts[1] = "{id}"
	case len(parts) == 2 && parts[0] == "tests" && parts[1] != "submit" && parts[1] != "results":
		parts[1] = "{id}"
	}
	p := "/" + strings.Join(parts, "/")
	if strings.HasSuffix(r.URL.Path, "/") && p != "/" {
		p += "/"
	}
	return r.Method + " " + p
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	route := routeOf(r)
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	f.mu.Lock()
	f.calls[route]++
	f.lastBodies[route] = body
	var override http.HandlerFunc
	if o, ok := f.overrides[route]; ok {
		override = o.handler
		if o.remaining > 0 {
			o.remaining--
			if o.remaining == 0 {
				delete(f.overrides, route)
			}
		}
	}
	f.mu.Unlock()

	if override != nil {
		override(w, r)
		return
	}

	switch route {
	case "POST /auth/login":
		f.login(w, body)
		return
	case "GET /auth/me":
		f.me(w, r)
		return
	case "POST /auth/logout":
		f.logout(w, r)
		return
	}

	if _, ok := f.currentUser(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
		return
	}

	switch route {
	case "POST /files/upload/scan/":
		f.upload(w, r)
	case "GET /files/{id}/scan":
		f.scan(w, r)
	case "POST /gpt/generate":
		f.generate(w, body)
	case "GET /tests/{id}":
		f.getTest(w, r)
	case "POST /tests/submit":
		f.submit(w, body)
	case "GET /tests/results":
		f.mu.Lock()
		out := append([]map[string]any{}, f.results...)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not Found"})
	}
}

func (f *FakeAPI) currentUser(r *http.Request) (FakeUser, bool) {
	c, err := r.Cookie(fakeSessionCookie)
	if err != nil {
		return FakeUser{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.sessions[c.Value]
	if !ok {
		return FakeUser{}, false
	}
	u, ok := f.users[email]
	return u, ok
}

func (f *FakeAPI) login(w http.ResponseWriter, body []byte) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}
	f.mu.Lock()
	u, ok := f.users[req.Email]
	if !ok || u.Password != req.Password {
		f.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Invalid credentials"})
		return
	}
	f.nextSession++
	token := fmt.Sprintf("tok-%d", f.nextSession)
	f.sessions[token] = u.Email
	f.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: fakeSessionCookie, Value: token, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"message": "ok"})
}

func (f *FakeAPI) me(w http.ResponseWriter, r *http.Request) {
	u, ok := f.currentUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"role":        u.Role,
		"is_verified": u.Verified,
	})
}

func (f *FakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(fakeSessionCookie); err == nil {
		f.mu.Lock()
		delete(f.sessions, c.Value)
		f.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: fakeSessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) upload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body", "file"}, "msg": "field required"}},
		})
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	f.mu.Lock()
	f.nextFile++
	id := fmt.Sprintf("f%d", f.nextFile)
	f.files[id] = data
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"file_id": id})
}

func (f *FakeAPI) scan(w http.ResponseWriter, r *http.Request) {
	id := strings.Split(strings.Trim(r.URL.Path, "/"), "/")[1]
	f.mu.Lock()
	_, known := f.files[id]
	status, ok := f.scanStatus[id]
	f.mu.Unlock()
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "file not found"})
		return
	}
	if !ok {
		status = "clean"
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_id": id, "status": status})
}

func (f *FakeAPI) generate(w http.ResponseWriter, body []byte) {
	var req struct {
		Prompt          string `json:"prompt"`
		StudyMaterialID string `json:"study_material_id"`
		Difficulty      string `json:"difficulty"`
		NumQuestions    int    `json:"num_questions"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[req.StudyMaterialID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "study material not found"})
		return
	}

	f.nextTest++
	test := &FakeTest{
		ID:          fmt.Sprintf("t%d", f.nextTest),
		Name:        req.Prompt,
		Description: fmt.Sprintf("%s questions on %s", req.Difficulty, req.Prompt),
	}
	for i := 1; i <= req.NumQuestions; i++ {
		test.Questions = append(test.Questions, FakeQuestion{
			ID:      fmt.Sprintf("q%d", i),
			Text:    fmt.Sprintf("%s question %d", req.Prompt, i),
			Options: []string{"A", "B", "C", "D"},
			Correct: "B",
		})
	}
	f.tests[test.ID] = test

	writeJSON(w, http.StatusOK, map[string]any{
		"test_id": test.ID,
		"metadata": map[string]any{
			"name":          test.Name,
			"description":   test.Description,
			"difficulty":    req.Difficulty,
			"num_questions": req.NumQuestions,
		},
	})
}

func (f *FakeAPI) getTest(w http.ResponseWriter, r *http.Request) {
	id := strings.Split(strings.Trim(r.URL.Path, "/"), "/")[1]
	f.mu.Lock()
	test, ok := f.tests[id]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "test not found"})
		return
	}
	questions := make([]map[string]any, 0, len(test.Questions))
	for _, q := range test.Questions {
		questions = append(questions, map[string]any{"id": q.ID, "text": q.Text, "options": q.Options})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          test.ID,
		"name":        test.Name,
		"description": test.Description,
		"questions":   questions,
	})
}

func (f *FakeAPI) submit(w http.ResponseWriter, body []byte) {
	var req struct {
		TestID  string            `json:"testId"`
		Answers map[string]string `json:"answers"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	test, ok := f.tests[req.TestID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "test not found"})
		return
	}
	perQuestion := map[string]bool{}
	correct := 0
	for _, q := range test.Questions {
		ok := req.Answers[q.ID] == q.Correct
		perQuestion[q.ID] = ok
		if ok {
			correct++
		}
	}
	score := 0.0
	if len(test.Questions) > 0 {
		score = float64(correct) / float64(len(test.Questions)) * 100
	}
	result := map[string]any{
		"test_id":      test.ID,
		"test_name":    test.Name,
		"score":        score,
		"per_question": perQuestion,
		"submitted_at": time.Now().UTC().Format(time.RFC3339),
	}
	f.results = append(f.results, result)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
