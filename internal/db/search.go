package db

// KNNQuery is the input for vector similarity search over one vector field.
type KNNQuery struct {
	IndexName    string
	Field        string // vector field name, e.g. narrative_vec
	Vector       []float32
	K            int
	ReturnFields []string
}

// PrefixQuery matches documents whose TEXT field contains words starting with Prefix.
type PrefixQuery struct {
	IndexName    string
	Field        string
	Prefix       string
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Score is a similarity in [0,1] for KNN and 0 otherwise.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
