package domain

// Document is a single corpus file loaded for ingestion.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is the retrieval unit produced by splitting a document.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Path       string
}

// Passage is a search hit returned by the retrieval API.
type Passage struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
	FilePath string            `json:"file_path"`
}
