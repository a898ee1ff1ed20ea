package tasks

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"chunked-eval/pkg/schema"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

// LoadCorpus loads the task corpus from dataDir. Format priority follows
// the storage preference: parquet (primary), Arrow IPC, JSON (fallback).
func (t Task) LoadCorpus(dataDir string) ([]schema.CorpusRecord, error) {
	dir := filepath.Join(dataDir, t.DatasetDir)

	parquetPath := filepath.Join(dir, "corpus.parquet")
	if _, err := os.Stat(parquetPath); err == nil {
		records, err := readCorpusParquet(parquetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus parquet: %w", err)
		}
		return records, nil
	}

	arrowPath := filepath.Join(dir, "corpus.arrow")
	if _, err := os.Stat(arrowPath); err == nil {
		records, err := schema.ReadCorpusFromArrowIPC(arrowPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus arrow: %w", err)
		}
		return records, nil
	}

	jsonPath := filepath.Join(dir, "corpus.json")
	if _, err := os.Stat(jsonPath); err == nil {
		log.Printf("📋 No columnar corpus found for %s, falling back to JSON", t.Name)
		var records []schema.CorpusRecord
		if err := readJSON(jsonPath, &records); err != nil {
			return nil, fmt.Errorf("failed to read corpus json: %w", err)
		}
		return records, nil
	}

	return nil, fmt.Errorf("no corpus found for task %s under %s", t.Name, dir)
}

// LoadQueries loads the queries for an evaluation split
func (t Task) LoadQueries(dataDir, split string) ([]schema.QueryRecord, error) {
	if !t.HasSplit(split) {
		return nil, fmt.Errorf("task %s has no split %q (available: %v)", t.Name, split, t.Splits)
	}
	dir := filepath.Join(dataDir, t.DatasetDir)

	parquetPath := filepath.Join(dir, "queries-"+split+".parquet")
	if _, err := os.Stat(parquetPath); err == nil {
		records, err := readQueriesParquet(parquetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read queries parquet: %w", err)
		}
		return records, nil
	}

	jsonPath := filepath.Join(dir, "queries-"+split+".json")
	if _, err := os.Stat(jsonPath); err == nil {
		var records []schema.QueryRecord
		if err := readJSON(jsonPath, &records); err != nil {
			return nil, fmt.Errorf("failed to read queries json: %w", err)
		}
		return records, nil
	}

	return nil, fmt.Errorf("no queries found for task %s split %s under %s", t.Name, split, dir)
}

// LoadQrels loads relevance judgments for a split as query -> doc -> grade
func (t Task) LoadQrels(dataDir, split string) (map[string]map[string]int, error) {
	if !t.HasSplit(split) {
		return nil, fmt.Errorf("task %s has no split %q (available: %v)", t.Name, split, t.Splits)
	}
	dir := filepath.Join(dataDir, t.DatasetDir)

	var records []schema.QrelRecord

	parquetPath := filepath.Join(dir, "qrels-"+split+".parquet")
	jsonPath := filepath.Join(dir, "qrels-"+split+".json")
	if _, err := os.Stat(parquetPath); err == nil {
		records, err = readQrelsParquet(parquetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read qrels parquet: %w", err)
		}
	} else if _, err := os.Stat(jsonPath); err == nil {
		if err := readJSON(jsonPath, &records); err != nil {
			return nil, fmt.Errorf("failed to read qrels json: %w", err)
		}
	} else {
		return nil, fmt.Errorf("no qrels found for task %s split %s under %s", t.Name, split, dir)
	}

	qrels := make(map[string]map[string]int)
	for _, r := range records {
		if qrels[r.QueryID] == nil {
			qrels[r.QueryID] = make(map[string]int)
		}
		qrels[r.QueryID][r.DocID] = int(r.Relevance)
	}
	return qrels, nil
}

func readCorpusParquet(filePath string) ([]schema.CorpusRecord, error) {
	fr, err := local.NewLocalFileReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(schema.CorpusRecord), 2)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	numRows := pr.GetNumRows()
	if numRows == 0 {
		return nil, fmt.Errorf("parquet file contains no rows")
	}

	records := make([]schema.CorpusRecord, numRows)
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("failed to read parquet records: %w", err)
	}
	return records, nil
}

func readQueriesParquet(filePath string) ([]schema.QueryRecord, error) {
	fr, err := local.NewLocalFileReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(schema.QueryRecord), 2)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	numRows := pr.GetNumRows()
	if numRows == 0 {
		return nil, fmt.Errorf("parquet file contains no rows")
	}

	records := make([]schema.QueryRecord, numRows)
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("failed to read parquet records: %w", err)
	}
	return records, nil
}

func readQrelsParquet(filePath string) ([]schema.QrelRecord, error) {
	fr, err := local.NewLocalFileReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(schema.QrelRecord), 2)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	numRows := pr.GetNumRows()
	if numRows == 0 {
		return nil, fmt.Errorf("parquet file contains no rows")
	}

	records := make([]schema.QrelRecord, numRows)
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("failed to read parquet records: %w", err)
	}
	return records, nil
}

func readJSON(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse json: %w", err)
	}
	return nil
}
