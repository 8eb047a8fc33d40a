package chat

// Document is one reference passage from the knowledge base. Source names
// where it came from, such as the CSV source-column value or a file path.
type Document struct {
	ID      string
	Source  string
	Content string
}

// Match is a Document ranked by similarity to a question. Higher scores are
// more similar.
type Match struct {
	Document
	Score float64
}
