package schema

import (
	"encoding/json"
)

// CorpusRecord is one benchmark document, stored columnar (parquet or
// Arrow IPC) for efficient streaming reads, with JSON as a fallback format
type CorpusRecord struct {
	DocID string `parquet:"name=doc_id, type=BYTE_ARRAY, convertedtype=UTF8" json:"doc_id"`
	Title string `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8" json:"title"`
	Text  string `parquet:"name=text, type=BYTE_ARRAY, convertedtype=UTF8" json:"text"`
}

// FullText returns title and body joined the way the document is embedded
func (r CorpusRecord) FullText() string {
	if r.Title == "" {
		return r.Text
	}
	return r.Title + "\n" + r.Text
}

// QueryRecord is one benchmark query for an evaluation split
type QueryRecord struct {
	QueryID string `parquet:"name=query_id, type=BYTE_ARRAY, convertedtype=UTF8" json:"query_id"`
	Text    string `parquet:"name=text, type=BYTE_ARRAY, convertedtype=UTF8" json:"text"`
}

// QrelRecord is one graded relevance judgment
type QrelRecord struct {
	QueryID   string `parquet:"name=query_id, type=BYTE_ARRAY, convertedtype=UTF8" json:"query_id"`
	DocID     string `parquet:"name=doc_id, type=BYTE_ARRAY, convertedtype=UTF8" json:"doc_id"`
	Relevance int32  `parquet:"name=relevance, type=INT32" json:"relevance"`
}

// UnmarshalJSON tolerates corpora that carry a precomputed embedding
// column; chunk embeddings are always computed by the harness itself
func (r *CorpusRecord) UnmarshalJSON(data []byte) error {
	type Alias CorpusRecord
	temp := &struct {
		Embedding []interface{} `json:"embedding,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	_ = temp.Embedding

	return nil
}
