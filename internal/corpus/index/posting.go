package index

// Posting records how often a term occurs in one chunk.
type Posting struct {
	Chunk     int
	Frequency int
}

type PostingList []Posting

// Stats summarises a built index.
type Stats struct {
	Chunks         int     `json:"chunks"`
	Documents      int     `json:"documents"`
	Terms          int     `json:"terms"`
	AvgChunkLength float64 `json:"avg_chunk_length"`
}
