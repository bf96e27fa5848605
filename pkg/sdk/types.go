package cortex

import "fmt"

// ProcessRequest describes one note-processing call.
type ProcessRequest struct {
	ID          string            `json:"id,omitempty"`
	Text        string            `json:"text"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Task        string            `json:"task"`
	StoreResult bool              `json:"store_result,omitempty"`
	EmbedSource string            `json:"embed_source,omitempty"`
	Replace     bool              `json:"replace,omitempty"`
}

// ProcessingResult is the structured outcome of one processing call.
// Success=false means the backend chain failed; the HTTP call itself still
// succeeds with status 200.
type ProcessingResult struct {
	NoteID      string   `json:"note_id"`
	TaskName    string   `json:"task_name"`
	OutputText  string   `json:"output_text"`
	BackendUsed string   `json:"backend_used,omitempty"`
	LatencyMS   int64    `json:"latency_ms"`
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// StoreNoteRequest describes a note to persist.
type StoreNoteRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchRequest describes a semantic search call.
type SearchRequest struct {
	Query   string            `json:"query"`
	K       int               `json:"k,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// SearchHit is one semantic search result.
type SearchHit struct {
	NoteID      string  `json:"note_id"`
	TextSnippet string  `json:"text_snippet"`
	Score       float64 `json:"score"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// APIError is a structured error returned by the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cortex: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}
