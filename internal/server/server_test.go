package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/sheetwise-cli/internal/chat"
	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/session"
)

const financeCSV = "Name,Department,Salary\nJohn Smith,Finance,5000\nAna,Sales,4200\nLi,Finance,3900\n"

func init() { gin.SetMode(gin.TestMode) }

func newTestServer(t *testing.T, c chat.Completer, opts Options) *Server {
	t.Helper()
	orch := chat.New(c, chat.WithTimeout(200*time.Millisecond), chat.WithLogger(zerolog.Nop()))
	return New(orch, session.NewStore(), opts, zerolog.Nop())
}

func answering(text string) chat.Completer {
	return chat.CompleterFunc(func(ctx context.Context, prompt string) (string, error) { return text, nil })
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, s *Server, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(v)
	return do(t, s, method, path, bytes.NewReader(b), "application/json")
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/sessions", nil, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	var out struct{ ID string }
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.ID == "" {
		t.Fatal("empty session id")
	}
	return out.ID
}

func upload(t *testing.T, s *Server, id, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()
	return do(t, s, http.MethodPost, "/api/sessions/"+id+"/file", &buf, mw.FormDataContentType())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, answering("x"), Options{})
	w := do(t, s, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("health: %d %s", w.Code, w.Body)
	}
}

func TestUploadAskAndHistory(t *testing.T) {
	var seen string
	s := newTestServer(t, chat.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		seen = prompt
		return "Answer: 2 employees work in Finance", nil
	}), Options{})
	id := createSession(t, s)

	w := upload(t, s, id, "staff.csv", financeCSV)
	if w.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", w.Code, w.Body)
	}
	var up struct {
		Active string
		Sheets []session.SheetInfo
	}
	_ = json.Unmarshal(w.Body.Bytes(), &up)
	if up.Active != "staff" || len(up.Sheets) != 1 || up.Sheets[0].Rows != 3 || up.Sheets[0].Columns != 3 {
		t.Fatalf("upload response = %s", w.Body)
	}

	w = doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/questions", map[string]string{"question": "How many people work in Finance?"})
	if w.Code != http.StatusOK {
		t.Fatalf("ask: %d %s", w.Code, w.Body)
	}
	var ans struct {
		Answer string
		Turns  int
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ans)
	if ans.Answer != "Answer: 2 employees work in Finance" || ans.Turns != 1 {
		t.Fatalf("answer = %+v", ans)
	}
	if !strings.Contains(seen, "Salary") || !strings.Contains(seen, "How many people work in Finance?") {
		t.Fatalf("prompt lacks profile or question:\n%s", seen)
	}

	w = do(t, s, http.MethodGet, "/api/sessions/"+id+"/history", nil, "")
	var hist struct{ History chat.History }
	_ = json.Unmarshal(w.Body.Bytes(), &hist)
	if len(hist.History) != 1 || hist.History[0].Dataset != "staff" {
		t.Fatalf("history = %s", w.Body)
	}

	w = do(t, s, http.MethodDelete, "/api/sessions/"+id+"/history", nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("clear: %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/api/sessions/"+id+"/history", nil, "")
	if !strings.Contains(w.Body.String(), `"history":[]`) {
		t.Fatalf("history after clear = %s", w.Body)
	}
}

func TestProfileEndpoint(t *testing.T) {
	s := newTestServer(t, answering("x"), Options{Profile: profile.DefaultOptions()})
	id := createSession(t, s)
	upload(t, s, id, "staff.csv", financeCSV)

	w := do(t, s, http.MethodGet, "/api/sessions/"+id+"/profile", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "[DATASET] staff") || !strings.Contains(w.Body.String(), "Total rows: 3") {
		t.Fatalf("profile: %d %s", w.Code, w.Body)
	}
	w = do(t, s, http.MethodGet, "/api/sessions/"+id+"/profile?format=json", nil, "")
	var p profile.Profile
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil || p.Rows != 3 || len(p.Columns) != 3 {
		t.Fatalf("json profile: %v %s", err, w.Body)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, answering("x"), Options{})

	if w := do(t, s, http.MethodGet, "/api/sessions/missing/history", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", w.Code)
	}

	id := createSession(t, s)
	if w := doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/questions", map[string]string{"question": "hi"}); w.Code != http.StatusConflict {
		t.Fatalf("no dataset: %d %s", w.Code, w.Body)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/questions", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing question: %d", w.Code)
	}
	if w := upload(t, s, id, "notes.pdf", "%PDF"); w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported upload: %d %s", w.Code, w.Body)
	}

	upload(t, s, id, "empty.csv", "a,b\n")
	if w := doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/questions", map[string]string{"question": "how many rows?"}); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty dataset: %d %s", w.Code, w.Body)
	}
	if w := doJSON(t, s, http.MethodPut, "/api/sessions/"+id+"/sheet", map[string]string{"sheet": "nope"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown sheet: %d", w.Code)
	}
}

func TestCompletionFailures(t *testing.T) {
	failing := newTestServer(t, chat.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("upstream 500")
	}), Options{})
	id := createSession(t, failing)
	upload(t, failing, id, "staff.csv", financeCSV)
	w := doJSON(t, failing, http.MethodPost, "/api/sessions/"+id+"/questions", map[string]string{"question": "total salary?"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("failed completion: %d %s", w.Code, w.Body)
	}

	slow := newTestServer(t, chat.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), Options{})
	id = createSession(t, slow)
	upload(t, slow, id, "staff.csv", financeCSV)
	w = doJSON(t, slow, http.MethodPost, "/api/sessions/"+id+"/questions", map[string]string{"question": "total salary?"})
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("timeout: %d %s", w.Code, w.Body)
	}
	if w := do(t, slow, http.MethodGet, "/api/sessions/"+id+"/history", nil, ""); !strings.Contains(w.Body.String(), `"history":[]`) {
		t.Fatalf("history after failure = %s", w.Body)
	}
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, answering("x"), Options{MaxUploadBytes: 64})
	id := createSession(t, s)
	w := upload(t, s, id, "big.csv", "a,b\n"+strings.Repeat("1,2\n", 200))
	if w.Code != http.StatusRequestEntityTooLarge && w.Code != http.StatusBadRequest {
		t.Fatalf("oversized upload: %d %s", w.Code, w.Body)
	}
}

func TestTranscriptPageAndDelete(t *testing.T) {
	s := newTestServer(t, answering("Answer: **3**"), Options{})
	id := createSession(t, s)
	upload(t, s, id, "staff.csv", financeCSV)
	doJSON(t, s, http.MethodPost, "/api/sessions/"+id+"/questions", map[string]string{"question": "how many rows?"})

	w := do(t, s, http.MethodGet, "/sessions/"+id, nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<strong>3</strong>") {
		t.Fatalf("page: %d %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %s", ct)
	}

	if w := do(t, s, http.MethodDelete, "/api/sessions/"+id, nil, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/sessions/"+id, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("deleted session page: %d", w.Code)
	}
}

func TestSelectSheetOnCSV(t *testing.T) {
	s := newTestServer(t, answering("x"), Options{})
	id := createSession(t, s)
	if w := doJSON(t, s, http.MethodPut, "/api/sessions/"+id+"/sheet", map[string]string{"sheet": "staff"}); w.Code != http.StatusConflict {
		t.Fatalf("select before upload: %d", w.Code)
	}
	upload(t, s, id, "staff.csv", financeCSV)
	w := doJSON(t, s, http.MethodPut, "/api/sessions/"+id+"/sheet", map[string]string{"sheet": "1"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"active":"staff"`) {
		t.Fatalf("select by index: %d %s", w.Code, w.Body)
	}
}
