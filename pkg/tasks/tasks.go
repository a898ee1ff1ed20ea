package tasks

import (
	"fmt"
	"sort"
)

// Task names the fixed set of chunked retrieval benchmarks
const (
	SciFactChunked   = "SciFactChunked"
	NFCorpusChunked  = "NFCorpusChunked"
	FiQA2018Chunked  = "FiQA2018Chunked"
	TRECCOVIDChunked = "TRECCOVIDChunked"
	QuoraChunked     = "QuoraChunked"
)

// Task describes one benchmark: where its dataset lives and which
// evaluation splits it ships
type Task struct {
	Name        string
	DatasetDir  string
	Splits      []string
	Description string
}

var registry = map[string]Task{
	SciFactChunked: {
		Name:        SciFactChunked,
		DatasetDir:  "scifact",
		Splits:      []string{"train", "test"},
		Description: "Scientific claim verification corpus, chunked retrieval",
	},
	NFCorpusChunked: {
		Name:        NFCorpusChunked,
		DatasetDir:  "nfcorpus",
		Splits:      []string{"train", "dev", "test"},
		Description: "Nutrition facts medical retrieval corpus, chunked retrieval",
	},
	FiQA2018Chunked: {
		Name:        FiQA2018Chunked,
		DatasetDir:  "fiqa",
		Splits:      []string{"train", "dev", "test"},
		Description: "Financial opinion QA corpus, chunked retrieval",
	},
	TRECCOVIDChunked: {
		Name:        TRECCOVIDChunked,
		DatasetDir:  "trec-covid",
		Splits:      []string{"test"},
		Description: "COVID-19 scientific literature corpus, chunked retrieval",
	},
	QuoraChunked: {
		Name:        QuoraChunked,
		DatasetDir:  "quora",
		Splits:      []string{"dev", "test"},
		Description: "Duplicate question retrieval corpus, chunked retrieval",
	},
}

// Get resolves a task by name
func Get(name string) (Task, error) {
	task, ok := registry[name]
	if !ok {
		return Task{}, fmt.Errorf("unknown task name: %s", name)
	}
	return task, nil
}

// Names returns the registered task names, sorted
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasSplit reports whether the task ships the given evaluation split
func (t Task) HasSplit(split string) bool {
	for _, s := range t.Splits {
		if s == split {
			return true
		}
	}
	return false
}
