package domain

// KeyPrefix namespaces every key cinesim writes to the store.
const KeyPrefix = "cinesim:"

// MovieKeyPrefix is the hash prefix of stored movies. The narrative index covers it.
const MovieKeyPrefix = KeyPrefix + "movie:"

// MovieIndexName is the FT index over stored movies.
const MovieIndexName = KeyPrefix + "movies:idx"

// MovieKey returns the storage key of a movie.
func MovieKey(id string) string { return MovieKeyPrefix + id }

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model            string
	Dimensions       int
	DistanceMetric   string
	Algorithm        string
	QueryInstruction string
}

// DefaultVectorConfig returns the defaults matching the stored narrative embeddings.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:            "text-embedding-3-small",
		Dimensions:       384,
		DistanceMetric:   "cosine",
		Algorithm:        "hnsw",
		QueryInstruction: "",
	}
}
