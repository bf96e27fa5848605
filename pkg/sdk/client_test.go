package cortex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProcess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/process" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}

		var req ProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Task != "summarize" {
			t.Errorf("task = %q", req.Task)
		}

		_ = json.NewEncoder(w).Encode(ProcessingResult{
			NoteID:      "n1",
			TaskName:    req.Task,
			OutputText:  "done",
			BackendUsed: "local",
			Success:     true,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithAPIKey("secret"))

	result, err := client.Process(context.Background(), ProcessRequest{
		Text: "note", Task: "summarize",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !result.Success || result.OutputText != "done" {
		t.Errorf("result = %+v", result)
	}
}

func TestProcess_FailedResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ProcessingResult{
			NoteID:  "n1",
			Success: false,
			Error:   "backend unavailable",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	result, err := client.Process(context.Background(), ProcessRequest{Text: "note", Task: "t"})
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if result.Success {
		t.Error("Success = true")
	}
	if result.Error == "" {
		t.Error("Error is empty")
	}
}

func TestStoreNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/notes" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"note_id": "abc-123"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	id, err := client.StoreNote(context.Background(), StoreNoteRequest{Text: "remember"})
	if err != nil {
		t.Fatalf("StoreNote() error = %v", err)
	}
	if id != "abc-123" {
		t.Errorf("id = %q", id)
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.K != 3 {
			t.Errorf("k = %d", req.K)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []SearchHit{{NoteID: "n1", TextSnippet: "first", Score: 0.9}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	hits, err := client.Search(context.Background(), SearchRequest{Query: "first", K: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].NoteID != "n1" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string][]string{"tasks": {"expand", "summarize"}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	tasks, err := client.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("tasks = %v", tasks)
	}
}

func TestHealth_DegradedIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthStatus{
			Status: "degraded",
			Checks: map[string]string{"index": "error"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if status.Status != "degraded" {
		t.Errorf("status = %q", status.Status)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "unknown_task",
			"message": "no template registered for task",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	_, err := client.Process(context.Background(), ProcessRequest{Text: "note", Task: "nope"})
	if err == nil {
		t.Fatal("Process() error = nil, want *APIError")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "unknown_task" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestAPIError_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	_, err := client.Search(context.Background(), SearchRequest{Query: "q"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not *APIError", err)
	}
	if apiErr.Code != "unknown" || apiErr.Message != "upstream exploded" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}
