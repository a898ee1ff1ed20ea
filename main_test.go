package main

import (
	"strings"
	"testing"

	"chunked-eval/pkg/tasks"
)

func defaultOptions() *Options {
	return &Options{
		ModelName:       DefaultModelName,
		Strategy:        DefaultChunkingStrategy,
		TaskName:        tasks.SciFactChunked,
		EvalSplit:       "test",
		ChunkSize:       DefaultChunkSize,
		NSentences:      DefaultNSentences,
		LongEmbedSize:   DefaultLongLateChunkingEmbedSize,
		LongOverlapSize: DefaultLongLateChunkingOverlapSize,
	}
}

func TestValidateOptions(t *testing.T) {
	t.Run("defaults pass", func(t *testing.T) {
		opts := defaultOptions()
		if err := validateOptions(opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if opts.LongEmbedSize != DefaultLongLateChunkingEmbedSize {
			t.Errorf("embed size should be untouched, got %d", opts.LongEmbedSize)
		}
	})

	t.Run("unknown task rejected", func(t *testing.T) {
		opts := defaultOptions()
		opts.TaskName = "NotARealTask"
		err := validateOptions(opts)
		if err == nil {
			t.Fatal("expected error for unknown task")
		}
		if !strings.Contains(err.Error(), "unknown task name") {
			t.Errorf("unexpected error message: %v", err)
		}
	})

	t.Run("truncation disables long late chunking", func(t *testing.T) {
		opts := defaultOptions()
		opts.TruncateMaxLength = 8192
		if err := validateOptions(opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if opts.LongEmbedSize != 0 {
			t.Errorf("expected embed size forced to 0, got %d", opts.LongEmbedSize)
		}
	})

	t.Run("truncation alone is valid", func(t *testing.T) {
		opts := defaultOptions()
		opts.TruncateMaxLength = 8192
		opts.LongEmbedSize = 0
		if err := validateOptions(opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("neither truncation nor windows fails", func(t *testing.T) {
		opts := defaultOptions()
		opts.LongEmbedSize = 0
		if err := validateOptions(opts); err == nil {
			t.Fatal("expected error when documents cannot be handled")
		}
	})
}
