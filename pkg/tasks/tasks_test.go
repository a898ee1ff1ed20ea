package tasks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"chunked-eval/pkg/schema"
)

func TestGet(t *testing.T) {
	t.Run("known task", func(t *testing.T) {
		task, err := Get(SciFactChunked)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if task.Name != SciFactChunked {
			t.Errorf("expected task name %s, got %s", SciFactChunked, task.Name)
		}
		if task.DatasetDir != "scifact" {
			t.Errorf("expected dataset dir scifact, got %s", task.DatasetDir)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := Get("NotARealTask")
		if err == nil {
			t.Fatal("expected error for unknown task name")
		}
		if got := err.Error(); got != "unknown task name: NotARealTask" {
			t.Errorf("unexpected error message: %s", got)
		}
	})
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 5 {
		t.Fatalf("expected 5 registered tasks, got %d", len(names))
	}
	// Sorted output
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
}

func TestHasSplit(t *testing.T) {
	task, err := Get(TRECCOVIDChunked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !task.HasSplit("test") {
		t.Error("expected TRECCOVIDChunked to have a test split")
	}
	if task.HasSplit("dev") {
		t.Error("expected TRECCOVIDChunked to have no dev split")
	}
}

// writeFixture writes a JSON dataset fixture under dir
func writeFixture(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal fixture: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
}

func TestLoadCorpusJSONFallback(t *testing.T) {
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "scifact")

	writeFixture(t, filepath.Join(dir, "corpus.json"), []schema.CorpusRecord{
		{DocID: "d1", Title: "Title One", Text: "Body one."},
		{DocID: "d2", Text: "Body two."},
	})

	task, err := Get(SciFactChunked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	corpus, err := task.LoadCorpus(dataDir)
	if err != nil {
		t.Fatalf("failed to load corpus: %v", err)
	}
	if len(corpus) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(corpus))
	}
	if corpus[0].DocID != "d1" {
		t.Errorf("expected doc d1, got %s", corpus[0].DocID)
	}
	if corpus[0].FullText() != "Title One\nBody one." {
		t.Errorf("unexpected full text: %q", corpus[0].FullText())
	}
	if corpus[1].FullText() != "Body two." {
		t.Errorf("expected untitled document to use body only, got %q", corpus[1].FullText())
	}
}

func TestLoadCorpusArrowPreferredOverJSON(t *testing.T) {
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "scifact")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create dataset dir: %v", err)
	}

	arrowRecords := []schema.CorpusRecord{{DocID: "arrow-doc", Text: "from arrow"}}
	if err := schema.WriteCorpusToArrowIPC(filepath.Join(dir, "corpus.arrow"), arrowRecords); err != nil {
		t.Fatalf("failed to write arrow fixture: %v", err)
	}
	writeFixture(t, filepath.Join(dir, "corpus.json"), []schema.CorpusRecord{
		{DocID: "json-doc", Text: "from json"},
	})

	task, _ := Get(SciFactChunked)
	corpus, err := task.LoadCorpus(dataDir)
	if err != nil {
		t.Fatalf("failed to load corpus: %v", err)
	}
	if len(corpus) != 1 || corpus[0].DocID != "arrow-doc" {
		t.Errorf("expected arrow corpus to take priority, got %+v", corpus)
	}
}

func TestLoadCorpusMissing(t *testing.T) {
	task, _ := Get(SciFactChunked)
	if _, err := task.LoadCorpus(t.TempDir()); err == nil {
		t.Error("expected error for missing corpus")
	}
}

func TestLoadQueries(t *testing.T) {
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "scifact")

	writeFixture(t, filepath.Join(dir, "queries-test.json"), []schema.QueryRecord{
		{QueryID: "q1", Text: "a question"},
	})

	task, _ := Get(SciFactChunked)

	t.Run("valid split", func(t *testing.T) {
		queries, err := task.LoadQueries(dataDir, "test")
		if err != nil {
			t.Fatalf("failed to load queries: %v", err)
		}
		if len(queries) != 1 || queries[0].QueryID != "q1" {
			t.Errorf("unexpected queries: %+v", queries)
		}
	})

	t.Run("unknown split", func(t *testing.T) {
		if _, err := task.LoadQueries(dataDir, "validation"); err == nil {
			t.Error("expected error for unknown split")
		}
	})
}

func TestLoadQrels(t *testing.T) {
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "scifact")

	writeFixture(t, filepath.Join(dir, "qrels-test.json"), []schema.QrelRecord{
		{QueryID: "q1", DocID: "d1", Relevance: 2},
		{QueryID: "q1", DocID: "d2", Relevance: 1},
		{QueryID: "q2", DocID: "d1", Relevance: 1},
	})

	task, _ := Get(SciFactChunked)

	qrels, err := task.LoadQrels(dataDir, "test")
	if err != nil {
		t.Fatalf("failed to load qrels: %v", err)
	}
	if len(qrels) != 2 {
		t.Fatalf("expected judgments for 2 queries, got %d", len(qrels))
	}
	if qrels["q1"]["d1"] != 2 {
		t.Errorf("expected grade 2 for q1/d1, got %d", qrels["q1"]["d1"])
	}
	if qrels["q2"]["d1"] != 1 {
		t.Errorf("expected grade 1 for q2/d1, got %d", qrels["q2"]["d1"])
	}
}
