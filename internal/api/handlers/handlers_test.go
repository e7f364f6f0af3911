package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/CodeInsight/internal/agent"
	middleware "github.com/markdave123-py/CodeInsight/internal/api/middlewares"
	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/markdown"
	"github.com/markdave123-py/CodeInsight/internal/models"
	"github.com/markdave123-py/CodeInsight/internal/services"
)

type fakeUsers struct {
	signupErr error
	loginErr  error
	loggedOut string
}

func (f *fakeUsers) Signup(_ context.Context, email, _, name string) (*models.User, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &models.User{ID: "u1", Email: email, DisplayName: name}, nil
}

func (f *fakeUsers) Login(_ context.Context, email, _, redirect string) (*services.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if redirect == "" {
		redirect = "/"
	}
	return &services.LoginResult{Token: "tok", Redirect: redirect, User: &models.User{ID: "u1", Email: email}}, nil
}

func (f *fakeUsers) Logout(_ context.Context, token string) error {
	f.loggedOut = token
	return nil
}

func (f *fakeUsers) Session(_ context.Context, userID string) (services.SessionState, error) {
	return services.SessionState{IsAuthenticated: true, User: &models.User{ID: userID}}, nil
}

type fakeProvisioner struct{ calls int }

func (f *fakeProvisioner) GetOrCreate(_ context.Context, userID string) (string, error) {
	f.calls++
	return services.CollectionName(userID), nil
}

type fakeIngester struct {
	names      []string
	collection string
}

func (f *fakeIngester) IngestFiles(_ context.Context, files []services.UploadFile, _, collection string, onProgress services.ProgressFunc) services.IngestReport {
	f.collection = collection
	report := services.IngestReport{DocumentIDs: []string{}}
	for i, file := range files {
		body, _ := io.ReadAll(file.Body)
		f.names = append(f.names, file.Name+":"+string(body))
		onProgress(services.UploadProgress{Message: "Uploading " + file.Name, Percent: float64(i * 10), File: file.Name})
		report.Files = append(report.Files, services.FileOutcome{FileName: file.Name, State: services.StateReady.String(), DocumentID: "d" + file.Name})
		report.DocumentIDs = append(report.DocumentIDs, "d"+file.Name)
	}
	onProgress(services.UploadProgress{Message: "All files indexed successfully!", Percent: 100})
	return report
}

type fakeDocs struct {
	docs []models.Document
	err  error
}

func (f *fakeDocs) List(context.Context, string) []models.Document { return f.docs }

func (f *fakeDocs) Delete(_ context.Context, _, id string) ([]models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	kept := f.docs[:0]
	for _, d := range f.docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	f.docs = kept
	return f.docs, nil
}

type gatedModel struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
	reply string
}

func (m *gatedModel) ModelName() string { return "test" }

func (m *gatedModel) StreamChat(ctx context.Context, _ core.ChatRequest, yield func(core.ChatChunk) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.gate != nil {
		<-m.gate
	}
	return yield(core.ChatChunk{Text: m.reply})
}

type nopSearcher struct{}

func (nopSearcher) Search(context.Context, string, string, int) ([]models.ScoredChunk, error) {
	return nil, nil
}

func authed(r *http.Request, uid string) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), uid))
}

// readSSE splits an event stream into (event, data) pairs.
func readSSE(t *testing.T, body io.Reader) [][2]string {
	t.Helper()
	var out [][2]string
	var event string
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			out = append(out, [2]string{event, strings.TrimPrefix(line, "data: ")})
		}
	}
	require.NoError(t, sc.Err())
	return out
}

func TestSignupAndLogin(t *testing.T) {
	users := &fakeUsers{}
	h := NewAuthHandler(users, nil)

	rec := httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader(`{"email":"a@b.co","password":"longenough"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var res services.LoginResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "/", res.Redirect)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@b.co","password":"x","redirect":"/dashboard"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "/dashboard", res.Redirect)
}

func TestAuthErrors(t *testing.T) {
	cases := []struct {
		name  string
		users *fakeUsers
		call  func(*AuthHandler, http.ResponseWriter, *http.Request)
		body  string
		want  int
	}{
		{"signup bad body", &fakeUsers{}, (*AuthHandler).Signup, "{", http.StatusBadRequest},
		{"signup invalid", &fakeUsers{signupErr: services.ErrInvalidSignup}, (*AuthHandler).Signup, `{}`, http.StatusBadRequest},
		{"signup taken", &fakeUsers{signupErr: services.ErrEmailTaken}, (*AuthHandler).Signup, `{}`, http.StatusConflict},
		{"login wrong password", &fakeUsers{loginErr: services.ErrInvalidCredentials}, (*AuthHandler).Login, `{}`, http.StatusUnauthorized},
		{"login failure", &fakeUsers{loginErr: errors.New("db down")}, (*AuthHandler).Login, `{}`, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.call(NewAuthHandler(tc.users, nil), rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestSessionRequiresUser(t *testing.T) {
	h := NewAuthHandler(&fakeUsers{}, nil)

	rec := httptest.NewRecorder()
	h.Session(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Session(rec, authed(httptest.NewRequest(http.MethodGet, "/api/session", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var state services.SessionState
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&state))
	assert.True(t, state.IsAuthenticated)
}

func TestWorkspaceProvisionsCollection(t *testing.T) {
	prov := &fakeProvisioner{}
	docs := &fakeDocs{docs: []models.Document{{ID: "d1", FileName: "main.go"}}}
	h := NewWorkspaceHandler(&fakeUsers{}, prov, docs, nil)

	rec := httptest.NewRecorder()
	h.GetWorkspace(rec, authed(httptest.NewRequest(http.MethodGet, "/api/workspace", nil), "Jane.Doe-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var ws workspace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ws))
	assert.Equal(t, "user_jane_doe_1", ws.Collection)
	assert.Len(t, ws.Documents, 1)
	assert.Len(t, ws.Suggestions, len(agent.Suggestions))
	assert.Equal(t, 1, prov.calls)
}

func TestUploadStreamsProgress(t *testing.T) {
	ing := &fakeIngester{}
	h := NewDocumentHandler(&fakeProvisioner{}, ing, &fakeDocs{}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range map[string]string{"a.go": "package a", "b.py": "print(1)"} {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, _ = part.Write([]byte(content))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.UploadDocuments(rec, authed(req, "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "user_u1", ing.collection)
	assert.ElementsMatch(t, []string{"a.go:package a", "b.py:print(1)"}, ing.names)

	events := readSSE(t, rec.Body)
	require.Len(t, events, 4)
	assert.Equal(t, "progress", events[0][0])
	assert.Equal(t, "done", events[3][0])

	var report services.IngestReport
	require.NoError(t, json.Unmarshal([]byte(events[3][1]), &report))
	assert.Len(t, report.DocumentIDs, 2)
}

func TestUploadWithoutFiles(t *testing.T) {
	h := NewDocumentHandler(&fakeProvisioner{}, &fakeIngester{}, &fakeDocs{}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	h.UploadDocuments(rec, authed(req, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func deleteRequest(id, uid string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	return authed(req, uid)
}

func TestDeleteReturnsRelistedDocuments(t *testing.T) {
	docs := &fakeDocs{docs: []models.Document{{ID: "d1"}, {ID: "d2"}}}
	h := NewDocumentHandler(&fakeProvisioner{}, &fakeIngester{}, docs, nil)

	rec := httptest.NewRecorder()
	h.DeleteDocument(rec, deleteRequest("d1", "u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var left []models.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&left))
	require.Len(t, left, 1)
	assert.Equal(t, "d2", left[0].ID)
}

func TestDeleteErrors(t *testing.T) {
	h := NewDocumentHandler(&fakeProvisioner{}, &fakeIngester{}, &fakeDocs{err: core.ErrDocumentNotFound}, nil)
	rec := httptest.NewRecorder()
	h.DeleteDocument(rec, deleteRequest("nope", "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h = NewDocumentHandler(&fakeProvisioner{}, &fakeIngester{}, &fakeDocs{err: errors.New("boom")}, nil)
	rec = httptest.NewRecorder()
	h.DeleteDocument(rec, deleteRequest("d1", "u1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func newChat(model core.ChatModel) *ChatHandler {
	reg := agent.NewRegistry(agent.New(model, agent.Config{}, nil), nopSearcher{}, nil)
	return NewChatHandler(reg, &fakeProvisioner{}, markdown.NewRenderer(), nil)
}

func TestSendMessageStreamsReply(t *testing.T) {
	h := newChat(&gatedModel{reply: "**bold** answer"})

	rec := httptest.NewRecorder()
	h.SendMessage(rec, authed(httptest.NewRequest(http.MethodPost, "/api/chat/messages", strings.NewReader(`{"input":"explain"}`)), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	events := readSSE(t, rec.Body)
	require.NotEmpty(t, events)
	assert.Equal(t, string(agent.EventMessageStart), events[0][0])
	assert.Equal(t, string(agent.EventComplete), events[len(events)-1][0])

	rec = httptest.NewRecorder()
	h.GetChat(rec, authed(httptest.NewRequest(http.MethodGet, "/api/chat?render=html", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var tr transcript
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tr))
	require.Len(t, tr.Messages, 2)
	assert.Contains(t, tr.Messages[1].HTML, "<strong>bold</strong>")
	assert.Empty(t, tr.Messages[0].HTML)
	assert.False(t, tr.IsLoading)
	assert.Empty(t, tr.Suggestions)
}

func TestSendMessageWhileLoadingConflicts(t *testing.T) {
	model := &gatedModel{gate: make(chan struct{}), reply: "ok"}
	h := newChat(model)
	s := h.session("u1")

	s.SetInput("first")
	gen, err := s.Submit(context.Background())
	require.NoError(t, err)

	s.SetInput("draft")
	rec := httptest.NewRecorder()
	h.SendMessage(rec, authed(httptest.NewRequest(http.MethodPost, "/api/chat/messages", strings.NewReader(`{"input":"second"}`)), "u1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "draft", s.Input())

	rec = httptest.NewRecorder()
	h.ResetChat(rec, authed(httptest.NewRequest(http.MethodDelete, "/api/chat", nil), "u1"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(model.gate)
	_, err = gen.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls)

	rec = httptest.NewRecorder()
	h.ResetChat(rec, authed(httptest.NewRequest(http.MethodDelete, "/api/chat", nil), "u1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSendMessageEmptyInput(t *testing.T) {
	h := newChat(&gatedModel{})
	rec := httptest.NewRecorder()
	h.SendMessage(rec, authed(httptest.NewRequest(http.MethodPost, "/api/chat/messages", nil), "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetInputAndEmptyTranscript(t *testing.T) {
	h := newChat(&gatedModel{})

	rec := httptest.NewRecorder()
	h.SetInput(rec, authed(httptest.NewRequest(http.MethodPut, "/api/chat/input", strings.NewReader(`{"input":"draft"}`)), "u1"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.GetChat(rec, authed(httptest.NewRequest(http.MethodGet, "/api/chat", nil), "u1"))
	var tr transcript
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tr))
	assert.Equal(t, "draft", tr.Input)
	assert.Empty(t, tr.Messages)
	assert.Len(t, tr.Suggestions, len(agent.Suggestions))
}

func TestStreamPendingWithoutGeneration(t *testing.T) {
	h := newChat(&gatedModel{})
	rec := httptest.NewRecorder()
	h.StreamPending(rec, authed(httptest.NewRequest(http.MethodGet, "/api/chat/stream", nil), "u1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
