package domain

// BackendKind identifies which backend class served a request.
type BackendKind string

const (
	// BackendLocal is the local inference server.
	BackendLocal BackendKind = "local"
	// BackendCloud is the cloud fallback.
	BackendCloud BackendKind = "cloud"
)

// ProcessingResult is the structured outcome of one orchestrated request.
// Success=false implies OutputText is empty and Error is set. Warnings carry
// best-effort failures (storage after a successful backend call) that do not
// flip Success.
type ProcessingResult struct {
	NoteID      string      `json:"note_id"`
	TaskName    string      `json:"task_name"`
	OutputText  string      `json:"output_text"`
	BackendUsed BackendKind `json:"backend_used,omitempty"`
	LatencyMS   int64       `json:"latency_ms"`
	Success     bool        `json:"success"`
	Error       string      `json:"error,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
}

// BackendConfig holds the connection settings for one inference backend.
// One is configured for the local server, optionally one for the cloud
// fallback. All values are injected, never hard-coded.
type BackendConfig struct {
	Kind           BackendKind
	Host           string
	Port           int
	TimeoutSeconds int
	APIKey         string
	Model          string
	EmbeddingModel string
}
