package main

import (
	"flag"
	"fmt"
	"os"

	"chunked-eval/pkg/config"
	"chunked-eval/pkg/embeddings"
	"chunked-eval/pkg/tasks"
	"chunked-eval/pkg/tokenizer"
)

// diagnose checks the pieces an evaluation run depends on: env config,
// the embedding endpoint, the tokenizer and the task dataset.
func main() {
	taskName := flag.String("task-name", tasks.SciFactChunked, "Task whose dataset to check")
	modelName := flag.String("model-name", "jinaai/jina-embeddings-v2-small-en", "Model to check the endpoint with")
	flag.Parse()

	config.LoadEnv()

	ok := true

	// 1. Environment
	endpoint := config.GetEmbeddingEndpoint()
	if endpoint == "" {
		fmt.Println("⚠️  EMBEDDING_ENDPOINT not set; pooled embeddings will use Ollama, late chunking will not work")
	} else {
		fmt.Printf("EMBEDDING_ENDPOINT: %s\n", endpoint)
	}
	fmt.Printf("Data dir: %s\n", config.GetDataDir())
	fmt.Printf("Cache: %s\n", config.GetCachePath())

	// 2. Endpoint
	if endpoint != "" {
		if _, err := embeddings.New(*modelName); err != nil {
			fmt.Printf("❌ Endpoint check failed: %v\n", err)
			ok = false
		} else {
			fmt.Println("✅ Endpoint reachable")
		}
	}

	// 3. Tokenizer round-trip
	tk, err := tokenizer.New()
	if err != nil {
		fmt.Printf("❌ Tokenizer init failed: %v\n", err)
		ok = false
	} else {
		sample := "Late chunking pools token embeddings over chunk spans."
		tokens := tk.Encode(sample)
		if tk.Decode(tokens) != sample {
			fmt.Printf("❌ Tokenizer round-trip mismatch for %q\n", sample)
			ok = false
		} else {
			fmt.Printf("✅ Tokenizer round-trip OK (%d tokens)\n", len(tokens))
		}
	}

	// 4. Task dataset
	task, err := tasks.Get(*taskName)
	if err != nil {
		fmt.Printf("❌ %v (known: %v)\n", err, tasks.Names())
		ok = false
	} else {
		corpus, err := task.LoadCorpus(config.GetDataDir())
		if err != nil {
			fmt.Printf("❌ Dataset check failed: %v\n", err)
			ok = false
		} else {
			fmt.Printf("✅ %s corpus: %d documents, splits %v\n", task.Name, len(corpus), task.Splits)
		}
	}

	if !ok {
		os.Exit(1)
	}
}
