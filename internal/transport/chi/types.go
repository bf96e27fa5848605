package chi

import "github.com/cortexnotes/cortex/internal/usecase/notes"

// ErrorCode classifies API error responses.
type ErrorCode string

const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeUnknownTask        ErrorCode = "unknown_task"
	CodeMissingInput       ErrorCode = "missing_input"
	CodeInputTooLarge      ErrorCode = "input_too_large"
	CodeDimensionMismatch  ErrorCode = "dimension_mismatch"
	CodeDuplicateID        ErrorCode = "duplicate_id"
	CodeBackendUnavailable ErrorCode = "backend_unavailable"
	CodeBackendTimeout     ErrorCode = "backend_timeout"
	CodeAuthRejected       ErrorCode = "backend_auth_rejected"
	CodeInvalidResponse    ErrorCode = "backend_invalid_response"
	CodeStorageFailure     ErrorCode = "storage_failure"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the API error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ProcessRequest is the body of POST /api/v1/process.
type ProcessRequest struct {
	ID          string            `json:"id,omitempty"`
	Text        string            `json:"text"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Task        string            `json:"task"`
	StoreResult bool              `json:"store_result,omitempty"`
	EmbedSource string            `json:"embed_source,omitempty"`
	Replace     bool              `json:"replace,omitempty"`
}

// StoreNoteRequest is the body of POST /api/v1/notes.
type StoreNoteRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StoreNoteResponse is the body returned by POST /api/v1/notes.
type StoreNoteResponse struct {
	NoteID string `json:"note_id"`
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query   string            `json:"query"`
	K       int               `json:"k,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// SearchResponse is the body returned by POST /api/v1/search.
type SearchResponse struct {
	Results []notes.SearchHit `json:"results"`
}

// TasksResponse is the body returned by GET /api/v1/tasks.
type TasksResponse struct {
	Tasks []string `json:"tasks"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
