package schema

// ChunkEmbedding is the parquet output schema for the per-chunk embedding
// dump written alongside the score file
type ChunkEmbedding struct {
	DocID      string    `parquet:"name=doc_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ChunkID    int32     `parquet:"name=chunk_id, type=INT32"`
	SpanStart  int32     `parquet:"name=span_start, type=INT32"`
	SpanEnd    int32     `parquet:"name=span_end, type=INT32"`
	TokenCount int32     `parquet:"name=token_count, type=INT32"`
	Embedding  []float32 `parquet:"name=embedding, type=LIST, valuetype=FLOAT"`
}

// RunMeta records how and where a run executed
type RunMeta struct {
	StartedAt       string  `json:"started_at"`
	DurationSeconds float64 `json:"duration_seconds"`
	Documents       int     `json:"documents"`
	Chunks          int     `json:"chunks"`
	Queries         int     `json:"queries"`
	PeakRSSBytes    uint64  `json:"peak_rss_bytes"`
	CacheHits       int     `json:"cache_hits"`
}

// ResultFile is the JSON score artifact written per task and pooling mode
type ResultFile struct {
	TaskName              string             `json:"task_name"`
	ModelName             string             `json:"model_name"`
	ChunkingStrategy      string             `json:"chunking_strategy"`
	ChunkedPoolingEnabled bool               `json:"chunked_pooling_enabled"`
	EvalSplit             string             `json:"eval_split"`
	TruncateMaxLength     int                `json:"truncate_max_length,omitempty"`
	LongEmbedSize         int                `json:"long_late_chunking_embed_size,omitempty"`
	LongOverlapSize       int                `json:"long_late_chunking_overlap_size,omitempty"`
	Scores                map[string]float64 `json:"scores"`
	Meta                  RunMeta            `json:"meta"`
}
