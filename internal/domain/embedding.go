package domain

// EmbeddingVector is a note's embedding, tagged with the model that
// produced it. Dims length must match the index dimensionality.
type EmbeddingVector struct {
	NoteID    string    `json:"note_id"`
	Dims      []float32 `json:"dims"`
	ModelName string    `json:"model_name"`
}
