package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"chunked-eval/pkg/chunker"
	"chunked-eval/pkg/config"
	"chunked-eval/pkg/embeddings"
	"chunked-eval/pkg/eval"
	"chunked-eval/pkg/store"
	"chunked-eval/pkg/tasks"
	"chunked-eval/pkg/tokenizer"
)

const (
	DefaultModelName                   = "jinaai/jina-embeddings-v2-small-en"
	DefaultChunkingStrategy            = chunker.StrategyFixed
	DefaultChunkSize                   = 256
	DefaultNSentences                  = 5
	DefaultLongLateChunkingOverlapSize = 256
	// Set to 0 to disable long late chunking
	DefaultLongLateChunkingEmbedSize = 8192

	ChunkedOutputDir = "results-chunked-pooling"
	NormalOutputDir  = "results-normal-pooling"
)

// Options holds the harness configuration
type Options struct {
	ModelName         string
	Strategy          string
	TaskName          string
	EvalSplit         string
	ChunkingModel     string
	TruncateMaxLength int
	ChunkSize         int
	NSentences        int
	LongEmbedSize     int
	LongOverlapSize   int
}

func main() {
	opts := parseFlags()

	if err := validateOptions(opts); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := runEvaluations(opts); err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	log.Println("✅ Evaluation complete.")
}

func parseFlags() *Options {
	opts := &Options{}

	flag.StringVar(&opts.ModelName, "model-name", DefaultModelName, "The name of the model to use")
	flag.StringVar(&opts.Strategy, "strategy", DefaultChunkingStrategy, "The chunking strategy to be applied (fixed, sentences, semantic)")
	flag.StringVar(&opts.TaskName, "task-name", tasks.SciFactChunked, "The evaluation task to perform")
	flag.StringVar(&opts.EvalSplit, "eval-split", "test", "The name of the evaluation split in the task")
	flag.StringVar(&opts.ChunkingModel, "chunking-model", "", "The name of the model used for semantic chunking (defaults to -model-name)")
	flag.IntVar(&opts.TruncateMaxLength, "truncate-max-length", 0, "Maximum number of tokens; 0 means no truncation. If set, long late chunking is disabled")
	flag.IntVar(&opts.ChunkSize, "chunk-size", DefaultChunkSize, "Number of tokens per chunk for fixed strategy")
	flag.IntVar(&opts.NSentences, "n-sentences", DefaultNSentences, "Number of sentences per chunk for sentence strategy")
	flag.IntVar(&opts.LongEmbedSize, "long-late-chunking-embed-size", DefaultLongLateChunkingEmbedSize, "Token length of the overlapping macro-windows embedded for long documents; 0 disables long late chunking")
	flag.IntVar(&opts.LongOverlapSize, "long-late-chunking-overlap-size", DefaultLongLateChunkingOverlapSize, "Number of tokens shared between neighbouring macro-windows")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Chunked Eval - Benchmark late chunking against normal pooling\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKnown tasks: %v\n", tasks.Names())
	}

	flag.Parse()

	return opts
}

// validateOptions enforces the harness configuration rules. Unknown task
// names and the truncation/window exclusivity are rejected before any
// backend work happens.
func validateOptions(opts *Options) error {
	if _, err := tasks.Get(opts.TaskName); err != nil {
		return err
	}

	if opts.TruncateMaxLength > 0 && opts.LongEmbedSize > 0 {
		opts.LongEmbedSize = 0
		log.Println("Long late chunking is disabled because truncate max length is defined, hence documents are truncated.")
	}

	if opts.LongEmbedSize <= 0 && opts.TruncateMaxLength <= 0 {
		return fmt.Errorf("define either long late chunking or truncation to handle documents")
	}

	return nil
}

func runEvaluations(opts *Options) error {
	config.LoadEnv()

	tk, err := tokenizer.New()
	if err != nil {
		return fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	// Model backend, loaded once and reused across both runs
	emb, err := embeddings.New(opts.ModelName)
	if err != nil {
		return fmt.Errorf("failed to initialize embeddings service: %w", err)
	}

	// Semantic chunking may run on a separate, usually smaller, model
	var chunkEmbedder chunker.Embedder
	if opts.Strategy == chunker.StrategySemantic {
		chunkingModel := opts.ChunkingModel
		if chunkingModel == "" {
			chunkingModel = opts.ModelName
		}
		if chunkingModel == opts.ModelName {
			chunkEmbedder = emb
		} else {
			svc, err := embeddings.New(chunkingModel)
			if err != nil {
				return fmt.Errorf("failed to initialize chunking model: %w", err)
			}
			chunkEmbedder = svc
		}
	}

	cache, err := store.Open(config.GetCachePath())
	if err != nil {
		return fmt.Errorf("failed to open embedding cache: %w", err)
	}
	defer cache.Close()

	runner := eval.NewRunner(tk, emb, chunkEmbedder, cache)

	base := eval.Config{
		ModelName:         opts.ModelName,
		Strategy:          opts.Strategy,
		TaskName:          opts.TaskName,
		EvalSplit:         opts.EvalSplit,
		TruncateMaxLength: opts.TruncateMaxLength,
		ChunkSize:         opts.ChunkSize,
		NSentences:        opts.NSentences,
		LongEmbedSize:     opts.LongEmbedSize,
		LongOverlapSize:   opts.LongOverlapSize,
		DataDir:           config.GetDataDir(),
	}

	// Evaluate with late chunking
	chunkedCfg := base
	chunkedCfg.ChunkedPooling = true
	chunkedCfg.OutputDir = ChunkedOutputDir
	if _, err := runner.Run(chunkedCfg); err != nil {
		return fmt.Errorf("chunked pooling run failed: %w", err)
	}

	// Encode without late chunking
	normalCfg := base
	normalCfg.ChunkedPooling = false
	normalCfg.OutputDir = NormalOutputDir
	if _, err := runner.Run(normalCfg); err != nil {
		return fmt.Errorf("normal pooling run failed: %w", err)
	}

	return nil
}
