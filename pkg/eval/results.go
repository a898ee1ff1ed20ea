package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"chunked-eval/pkg/schema"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// stagedChunkPath is the JSONL staging file holding the chunk embeddings
// of documents finished so far, kept next to the checkpoint so an
// interrupted run can resume without re-encoding
func stagedChunkPath(outputDir string) string {
	return outputDir + ".chunks.jsonl"
}

// appendStagedChunks appends one document's chunk records to the staging file
func appendStagedChunks(path string, records []schema.ChunkEmbedding) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open staging file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return fmt.Errorf("failed to stage chunk record: %w", err)
		}
	}
	return nil
}

// loadStagedChunks reads back all staged chunk records
func loadStagedChunks(path string) ([]schema.ChunkEmbedding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []schema.ChunkEmbedding
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec schema.ChunkEmbedding
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to parse staged chunk record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeResultFile writes the score file for a run as <task>.json,
// replacing any previous result
func writeResultFile(outputDir string, result *schema.ResultFile) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	path := filepath.Join(outputDir, result.TaskName+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// writeChunkEmbeddings dumps the per-chunk embeddings of a run to parquet
// as <task>-chunks.parquet
func writeChunkEmbeddings(outputDir, taskName string, records []schema.ChunkEmbedding) error {
	path := filepath.Join(outputDir, taskName+"-chunks.parquet")

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create chunk embedding file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(schema.ChunkEmbedding), 2)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range records {
		if err := pw.Write(records[i]); err != nil {
			return fmt.Errorf("parquet write error at record %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
