package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gradient/repository"
	"gradient/services"
	"gradient/usecase"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

type testServer struct {
	router   *gin.Engine
	store    *repository.MemoryStore
	mediaDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	dir := t.TempDir()
	blobs, err := services.NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	media := services.NewMediaPipeline(blobs, services.NewImageThumbnailer())

	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		HealthHandler(c, store)
	})
	RegisterRoutes(r.Group("/api"), Services{
		Projects: usecase.NewProjectsService(store, media, nil),
		Tasks:    usecase.NewTasksService(store, nil),
		Notes:    usecase.NewNotesService(store, media),
	})
	return &testServer{router: r, store: store, mediaDir: dir}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func (s *testServer) createProject(t *testing.T, name string) string {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/projects", gin.H{"name": name, "workshops": []string{"Woodshop"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create project status = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, env, &created)
	return created.ID
}

func multipartNote(t *testing.T, content string, files map[string][]byte, types []string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	mw.WriteField("content", content)
	for _, kind := range types {
		mw.WriteField("types[]", kind)
	}
	for name, data := range files {
		part, err := mw.CreateFormFile("files[]", name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return body, mw.FormDataContentType()
}

func TestProjectEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := s.createProject(t, "Bench")
	s.createProject(t, "Gate")

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantCount  int
	}{
		{name: "list", method: http.MethodGet, path: "/api/projects", wantStatus: http.StatusOK, wantCount: 2},
		{name: "search workshops", method: http.MethodGet, path: "/api/projects?scope=workshops&q=wood", wantStatus: http.StatusOK, wantCount: 2},
		{name: "search name", method: http.MethodGet, path: "/api/projects?scope=name&q=gat", wantStatus: http.StatusOK, wantCount: 1},
		{name: "unknown scope", method: http.MethodGet, path: "/api/projects?scope=colour", wantStatus: http.StatusBadRequest},
		{name: "get", method: http.MethodGet, path: "/api/projects/" + id, wantStatus: http.StatusOK},
		{name: "get missing", method: http.MethodGet, path: "/api/projects/missing", wantStatus: http.StatusNotFound},
		{name: "create without name", method: http.MethodPost, path: "/api/projects", body: gin.H{"description": "x"}, wantStatus: http.StatusBadRequest},
		{name: "create with unknown status", method: http.MethodPost, path: "/api/projects", body: gin.H{"name": "x", "status": "Dreaming"}, wantStatus: http.StatusBadRequest},
		{name: "update", method: http.MethodPut, path: "/api/projects/" + id, body: gin.H{"name": "Bench", "status": "Planning"}, wantStatus: http.StatusOK},
		{name: "update missing", method: http.MethodPut, path: "/api/projects/missing", body: gin.H{"name": "x"}, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCount > 0 {
				var list []map[string]interface{}
				decodeData(t, env, &list)
				if len(list) != tt.wantCount {
					t.Errorf("got %d projects, want %d", len(list), tt.wantCount)
				}
			}
		})
	}
}

func TestTaskEndpoints(t *testing.T) {
	s := newTestServer(t)
	projectID := s.createProject(t, "Bench")

	w, env := s.do(t, http.MethodPost, "/api/projects/"+projectID+"/tasks", gin.H{"title": "Sand", "notifyUser": false, "notificationDate": "2024-06-01T09:00:00Z"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create task status = %d: %s", w.Code, w.Body.String())
	}
	var task struct {
		ID               string  `json:"id"`
		Completed        bool    `json:"completed"`
		NotificationDate *string `json:"notificationDate"`
	}
	decodeData(t, env, &task)
	if task.NotificationDate != nil {
		t.Errorf("notificationDate = %v without notifyUser", *task.NotificationDate)
	}

	w, env = s.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/toggle", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", w.Code)
	}
	decodeData(t, env, &task)
	if !task.Completed {
		t.Error("task should be completed after toggle")
	}

	w, _ = s.do(t, http.MethodPut, "/api/tasks/"+task.ID+"/reminder", gin.H{"at": "2030-01-01T10:00:00Z"})
	if w.Code != http.StatusOK {
		t.Fatalf("set reminder status = %d: %s", w.Code, w.Body.String())
	}

	w, _ = s.do(t, http.MethodPost, "/api/projects/missing/tasks", gin.H{"title": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("task on missing project status = %d, want 404", w.Code)
	}

	w, env = s.do(t, http.MethodGet, "/api/projects/"+projectID+"/tasks", nil)
	var list []map[string]interface{}
	decodeData(t, env, &list)
	if w.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list tasks status = %d, %d tasks", w.Code, len(list))
	}

	w, _ = s.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete task status = %d", w.Code)
	}
	w, _ = s.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestCreateNoteMultipart(t *testing.T) {
	s := newTestServer(t)
	projectID := s.createProject(t, "Bench")

	body, contentType := multipartNote(t, "grain runs left", map[string][]byte{"memo.m4a": []byte("audio")}, []string{"audio"})
	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID+"/notes", body)
	req.Header.Set("Content-Type", contentType)
	w, env := s.serve(t, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create note status = %d: %s", w.Code, w.Body.String())
	}

	var note struct {
		ID          string `json:"id"`
		Attachments []struct {
			Type    string `json:"type"`
			FileURL string `json:"fileURL"`
		} `json:"attachments"`
	}
	decodeData(t, env, &note)
	if len(note.Attachments) != 1 || note.Attachments[0].Type != "audio" {
		t.Fatalf("attachments = %+v", note.Attachments)
	}
	matches, _ := filepath.Glob(filepath.Join(s.mediaDir, "attachments", "*.m4a"))
	if len(matches) != 1 {
		t.Errorf("stored media files = %v, want one .m4a", matches)
	}

	w, _ = s.do(t, http.MethodDelete, "/api/notes/"+note.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete note status = %d", w.Code)
	}
	if _, err := os.Stat(matches[0]); !os.IsNotExist(err) {
		t.Errorf("media file should be removed with the note, stat err = %v", err)
	}
}

func TestUpdateNoteClearsAttachments(t *testing.T) {
	s := newTestServer(t)
	projectID := s.createProject(t, "Bench")

	body, contentType := multipartNote(t, "grain", map[string][]byte{"memo.m4a": []byte("audio")}, []string{"audio"})
	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID+"/notes", body)
	req.Header.Set("Content-Type", contentType)
	w, env := s.serve(t, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create note status = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, env, &created)

	update := func(fields map[string]string) int {
		t.Helper()
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		mw.WriteField("content", "grain")
		for k, v := range fields {
			mw.WriteField(k, v)
		}
		if err := mw.Close(); err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodPut, "/api/notes/"+created.ID, body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w, env := s.serve(t, req)
		if w.Code != http.StatusOK {
			t.Fatalf("update note status = %d: %s", w.Code, w.Body.String())
		}
		var note struct {
			Attachments []json.RawMessage `json:"attachments"`
		}
		decodeData(t, env, &note)
		return len(note.Attachments)
	}

	if n := update(nil); n != 1 {
		t.Errorf("update without keep[] left %d attachments, want 1", n)
	}
	if n := update(map[string]string{"clear_attachments": "true"}); n != 0 {
		t.Errorf("update with clear_attachments left %d attachments, want 0", n)
	}
	matches, _ := filepath.Glob(filepath.Join(s.mediaDir, "attachments", "*.m4a"))
	if len(matches) != 0 {
		t.Errorf("cleared media files still stored: %v", matches)
	}
}

func TestCreateNoteRejectsBadUploads(t *testing.T) {
	s := newTestServer(t)
	projectID := s.createProject(t, "Bench")

	tests := []struct {
		name  string
		types []string
	}{
		{name: "missing type", types: nil},
		{name: "unknown type", types: []string{"pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartNote(t, "x", map[string][]byte{"a.bin": []byte("a")}, tt.types)
			req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID+"/notes", body)
			req.Header.Set("Content-Type", contentType)
			w, _ := s.serve(t, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	docs, _ := s.store.Query(context.Background(), repository.NotesCollection, repository.Filter{})
	if len(docs) != 0 {
		t.Errorf("%d notes written, want 0", len(docs))
	}
}

func TestDeleteProjectCascadeEndpoint(t *testing.T) {
	s := newTestServer(t)
	projectID := s.createProject(t, "Bench")
	for _, title := range []string{"Sand", "Oil"} {
		if w, _ := s.do(t, http.MethodPost, "/api/projects/"+projectID+"/tasks", gin.H{"title": title}); w.Code != http.StatusCreated {
			t.Fatalf("create task status = %d", w.Code)
		}
	}
	if w, _ := s.do(t, http.MethodPost, "/api/projects/"+projectID+"/notes", gin.H{"content": "finish"}); w.Code != http.StatusCreated {
		t.Fatalf("create note status = %d", w.Code)
	}

	w, env := s.do(t, http.MethodDelete, "/api/projects/"+projectID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete project status = %d: %s", w.Code, w.Body.String())
	}
	var report struct {
		DeletedTasks []string `json:"deletedTasks"`
		DeletedNotes []string `json:"deletedNotes"`
	}
	decodeData(t, env, &report)
	if len(report.DeletedTasks) != 2 || len(report.DeletedNotes) != 1 {
		t.Errorf("report = %+v", report)
	}

	if w, _ := s.do(t, http.MethodDelete, "/api/projects/"+projectID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestStreamProjects(t *testing.T) {
	s := newTestServer(t)
	s.createProject(t, "Bench")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/projects/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
		if strings.HasPrefix(line, "data:") {
			if event != "projects" || !strings.Contains(line, `"name":"Bench"`) {
				t.Errorf("event %q data %s", event, line)
			}
			return
		}
	}
	t.Fatalf("stream ended without data: %v", scanner.Err())
}
