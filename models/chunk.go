package models

// Chunk origins. Retrieval keeps the tag so answers can attribute claims to
// the code document itself or to a supplementary compliance form.
const (
	OriginDocument = "eebc-document"
	OriginForm     = "supplementary-form"
)

// Chunk is the atomic unit of retrieval: a bounded, overlap-aware span of
// source text with a stable identifier.
type Chunk struct {
	ChunkID string `json:"chunk_id"`
	Page    int    `json:"page"`
	Text    string `json:"text"`
	Origin  string `json:"origin,omitempty"`
}

// RetrievalResult is one scored hit from the vector store.
type RetrievalResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// Source is the compact citation record returned to the caller.
type Source struct {
	Page    int     `json:"page"`
	ChunkID string  `json:"chunk_id"`
	Score   float32 `json:"score"`
	Excerpt string  `json:"excerpt"`
}
