package eval

import (
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"chunked-eval/pkg/checkpoint"
	"chunked-eval/pkg/chunker"
	"chunked-eval/pkg/metrics"
	"chunked-eval/pkg/pooling"
	"chunked-eval/pkg/schema"
	"chunked-eval/pkg/store"
	"chunked-eval/pkg/tasks"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Config holds everything one evaluation run needs
type Config struct {
	ModelName         string
	Strategy          string
	TaskName          string
	EvalSplit         string
	TruncateMaxLength int
	ChunkSize         int
	NSentences        int
	LongEmbedSize     int
	LongOverlapSize   int

	ChunkedPooling bool
	OutputDir      string
	DataDir        string
}

// Embedder is the embedding backend contract the runner depends on. Token
// embeddings must align one-to-one with the harness tokenization of the
// input text.
type Embedder interface {
	EmbedTexts(texts []string) ([][]float32, error)
	EmbedTokens(texts []string) ([][][]float32, error)
}

// Tokenizer is the subset of the tokenizer service the runner needs
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Truncate(tokens []int, max int) []int
}

// Runner executes evaluation runs. The same runner (and model backend) is
// reused across the chunked and normal pooling runs.
type Runner struct {
	tk            Tokenizer
	emb           Embedder
	chunkEmbedder chunker.Embedder
	cache         *store.Cache
}

// chunkVector is one indexed chunk embedding
type chunkVector struct {
	docID string
	vec   []float32
}

// NewRunner creates a runner. chunkEmbedder backs the semantic chunking
// strategy and may be nil for other strategies; cache may be nil to
// disable embedding reuse.
func NewRunner(tk Tokenizer, emb Embedder, chunkEmbedder chunker.Embedder, cache *store.Cache) *Runner {
	return &Runner{
		tk:            tk,
		emb:           emb,
		chunkEmbedder: chunkEmbedder,
		cache:         cache,
	}
}

// Run evaluates one task under one pooling mode and writes the score file
// and chunk embedding dump into cfg.OutputDir, overwriting prior results.
func (r *Runner) Run(cfg Config) (*schema.ResultFile, error) {
	started := time.Now()

	task, err := tasks.Get(cfg.TaskName)
	if err != nil {
		return nil, err
	}

	corpus, err := task.LoadCorpus(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(corpus) == 0 {
		return nil, fmt.Errorf("task %s corpus is empty", task.Name)
	}
	queries, err := task.LoadQueries(cfg.DataDir, cfg.EvalSplit)
	if err != nil {
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}
	qrels, err := task.LoadQrels(cfg.DataDir, cfg.EvalSplit)
	if err != nil {
		return nil, fmt.Errorf("failed to load qrels: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ck, err := checkpoint.NewManager(cfg.OutputDir, task.Name, cfg.ChunkedPooling)
	if err != nil {
		return nil, fmt.Errorf("failed to init checkpoint: %w", err)
	}

	ch, err := chunker.New(cfg.Strategy, cfg.ChunkSize, cfg.NSentences, r.tk, r.chunkEmbedder)
	if err != nil {
		return nil, err
	}

	mode := "normal"
	if cfg.ChunkedPooling {
		mode = fmt.Sprintf("late:%d:%d", cfg.LongEmbedSize, cfg.LongOverlapSize)
	}
	if cfg.TruncateMaxLength > 0 {
		mode += fmt.Sprintf(":trunc%d", cfg.TruncateMaxLength)
	}

	log.Printf("🔧 Running %s split=%s strategy=%s chunked_pooling=%v over %d documents, %d queries",
		task.Name, cfg.EvalSplit, cfg.Strategy, cfg.ChunkedPooling, len(corpus), len(queries))

	// Resume an interrupted run: the staged chunk records rebuild the index
	// for documents the checkpoint marks as finished. A checkpoint that no
	// longer lines up with the corpus starts the run over.
	staging := stagedChunkPath(cfg.OutputDir)
	var index []chunkVector
	var dump []schema.ChunkEmbedding
	resume := 0
	if n := int(ck.DocsProcessed()); n > 0 {
		staged, err := loadStagedChunks(staging)
		ok := err == nil && n <= len(corpus)
		var blocks [][]schema.ChunkEmbedding
		if ok {
			// Staging may run ahead of the last checkpoint save; only the
			// checkpointed prefix is trusted, the rest is re-encoded
			blocks = stagedDocBlocks(staged)
			ok = len(blocks) >= n
			for i := 0; ok && i < n; i++ {
				if blocks[i][0].DocID != corpus[i].DocID {
					ok = false
				}
			}
		}
		if ok {
			resume = n
			for _, block := range blocks[:n] {
				for _, rec := range block {
					index = append(index, chunkVector{docID: rec.DocID, vec: rec.Embedding})
					dump = append(dump, rec)
				}
			}
			log.Printf("📋 Resuming %s: %d documents already encoded", task.Name, resume)
		} else {
			ck.Reset()
			if err := os.Remove(staging); err != nil && !os.IsNotExist(err) {
				log.Printf("⚠️  Failed to remove stale staging file: %v", err)
			}
		}
	}

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(corpus)),
		mpb.PrependDecorators(
			decor.Name("encoding "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	cacheHits := 0
	totalChunks := len(dump)

	for i, doc := range corpus {
		if i < resume {
			bar.Increment()
			continue
		}

		text := doc.FullText()
		tokens := r.tk.Encode(text)
		if cfg.TruncateMaxLength > 0 && len(tokens) > cfg.TruncateMaxLength {
			tokens = r.tk.Truncate(tokens, cfg.TruncateMaxLength)
			text = r.tk.Decode(tokens)
		}

		chunks, err := ch.Chunk(text, tokens)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk document %s: %w", doc.DocID, err)
		}
		if len(chunks) == 0 {
			ck.MarkDoc(doc.DocID, 0)
			bar.Increment()
			continue
		}

		var vecs [][]float32
		var hit bool
		if cfg.ChunkedPooling {
			vecs, hit, err = r.embedChunksLate(cfg, mode, text, tokens, chunks)
		} else {
			vecs, hit, err = r.embedChunksNormal(cfg, mode, chunks)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to embed document %s: %w", doc.DocID, err)
		}
		if hit {
			cacheHits++
		}

		docChunks := make([]schema.ChunkEmbedding, 0, len(vecs))
		for j, vec := range vecs {
			index = append(index, chunkVector{docID: doc.DocID, vec: vec})
			docChunks = append(docChunks, schema.ChunkEmbedding{
				DocID:      doc.DocID,
				ChunkID:    int32(j),
				SpanStart:  int32(chunks[j].Span.Start),
				SpanEnd:    int32(chunks[j].Span.End),
				TokenCount: int32(chunks[j].Span.End - chunks[j].Span.Start),
				Embedding:  vec,
			})
		}
		dump = append(dump, docChunks...)
		totalChunks += len(chunks)

		if err := appendStagedChunks(staging, docChunks); err != nil {
			log.Printf("⚠️  Failed to stage chunk embeddings: %v", err)
		}
		ck.MarkDoc(doc.DocID, len(chunks))
		if i%100 == 99 {
			if err := ck.Save(); err != nil {
				log.Printf("⚠️  Failed to save checkpoint: %v", err)
			}
		}
		bar.Increment()
	}
	p.Wait()

	rankings, err := r.rankQueries(queries, index)
	if err != nil {
		return nil, err
	}

	scores := metrics.Compute(rankings, qrels, metrics.DefaultKValues)

	result := &schema.ResultFile{
		TaskName:              task.Name,
		ModelName:             cfg.ModelName,
		ChunkingStrategy:      cfg.Strategy,
		ChunkedPoolingEnabled: cfg.ChunkedPooling,
		EvalSplit:             cfg.EvalSplit,
		TruncateMaxLength:     cfg.TruncateMaxLength,
		LongEmbedSize:         cfg.LongEmbedSize,
		LongOverlapSize:       cfg.LongOverlapSize,
		Scores:                scores,
		Meta: schema.RunMeta{
			StartedAt:       started.UTC().Format(time.RFC3339),
			DurationSeconds: time.Since(started).Seconds(),
			Documents:       len(corpus),
			Chunks:          totalChunks,
			Queries:         len(queries),
			PeakRSSBytes:    processRSS(),
			CacheHits:       cacheHits,
		},
	}

	if err := writeResultFile(cfg.OutputDir, result); err != nil {
		return nil, err
	}
	if err := writeChunkEmbeddings(cfg.OutputDir, task.Name, dump); err != nil {
		return nil, err
	}

	if err := os.Remove(staging); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  Failed to remove staging file: %v", err)
	}
	if err := ck.Clear(); err != nil {
		log.Printf("⚠️  Failed to clear checkpoint: %v", err)
	}

	log.Printf("📈 %s done in %.1fs: %d chunks indexed, ndcg@10=%.4f",
		task.Name, result.Meta.DurationSeconds, totalChunks, scores["ndcg_at_10"])
	return result, nil
}

// stagedDocBlocks groups staged chunk records by document in file order
func stagedDocBlocks(records []schema.ChunkEmbedding) [][]schema.ChunkEmbedding {
	var blocks [][]schema.ChunkEmbedding
	for _, rec := range records {
		if n := len(blocks); n == 0 || blocks[n-1][0].DocID != rec.DocID {
			blocks = append(blocks, nil)
		}
		blocks[len(blocks)-1] = append(blocks[len(blocks)-1], rec)
	}
	return blocks
}

// embedChunksLate embeds the whole document at token level once, then
// mean-pools each chunk span. Long documents are split into overlapping
// macro-windows and stitched back together before pooling.
func (r *Runner) embedChunksLate(cfg Config, mode, text string, tokens []int, chunks []chunker.Chunk) ([][]float32, bool, error) {
	const bucket = "token-embeddings"
	key := store.Key(cfg.ModelName, mode, text)

	var tokenEmb [][]float32
	hit := false
	if r.cache != nil {
		cached, found, err := r.cache.GetMatrix(bucket, key)
		if err != nil {
			return nil, false, err
		}
		if found {
			tokenEmb = cached
			hit = true
		}
	}

	if tokenEmb == nil {
		windows := pooling.MacroWindows(len(tokens), pooling.LongConfig{
			EmbedSize:   cfg.LongEmbedSize,
			OverlapSize: cfg.LongOverlapSize,
		})

		texts := make([]string, len(windows))
		for i, w := range windows {
			texts[i] = r.tk.Decode(tokens[w.Start:w.End])
		}

		matrices, err := r.emb.EmbedTokens(texts)
		if err != nil {
			return nil, false, err
		}
		tokenEmb, err = pooling.Stitch(windows, matrices)
		if err != nil {
			return nil, false, err
		}

		if r.cache != nil {
			if err := r.cache.PutMatrix(bucket, key, tokenEmb); err != nil {
				log.Printf("⚠️  Failed to cache token embeddings: %v", err)
			}
		}
	}

	spans := make([]chunker.Span, len(chunks))
	for i, c := range chunks {
		spans[i] = c.Span
	}
	return pooling.LateChunk(tokenEmb, spans), hit, nil
}

// embedChunksNormal embeds each chunk text independently
func (r *Runner) embedChunksNormal(cfg Config, mode string, chunks []chunker.Chunk) ([][]float32, bool, error) {
	const bucket = "chunk-embeddings"

	vecs := make([][]float32, len(chunks))
	var missing []int
	hit := true

	for i, c := range chunks {
		if r.cache == nil {
			missing = append(missing, i)
			continue
		}
		key := store.Key(cfg.ModelName, mode, c.Text)
		cached, found, err := r.cache.GetVector(bucket, key)
		if err != nil {
			return nil, false, err
		}
		if found {
			vecs[i] = cached
		} else {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		hit = false
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = chunks[i].Text
		}
		embedded, err := r.emb.EmbedTexts(texts)
		if err != nil {
			return nil, false, err
		}
		if len(embedded) != len(missing) {
			return nil, false, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(embedded))
		}
		for j, i := range missing {
			vecs[i] = embedded[j]
			if r.cache != nil {
				key := store.Key(cfg.ModelName, mode, chunks[i].Text)
				if err := r.cache.PutVector(bucket, key, embedded[j]); err != nil {
					log.Printf("⚠️  Failed to cache chunk embedding: %v", err)
				}
			}
		}
	}
	return vecs, hit && r.cache != nil, nil
}

// rankQueries embeds queries and ranks documents by their best chunk
// (max over chunk cosine similarities)
func (r *Runner) rankQueries(queries []schema.QueryRecord, index []chunkVector) (map[string]metrics.Ranking, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries to evaluate")
	}

	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.Text
	}
	queryVecs, err := r.emb.EmbedTexts(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed queries: %w", err)
	}
	if len(queryVecs) != len(queries) {
		return nil, fmt.Errorf("expected %d query embeddings, got %d", len(queries), len(queryVecs))
	}

	rankings := make(map[string]metrics.Ranking, len(queries))
	for i, q := range queries {
		best := make(map[string]float32)
		for _, cv := range index {
			score := chunker.CosineSimilarity(queryVecs[i], cv.vec)
			if prev, ok := best[cv.docID]; !ok || score > prev {
				best[cv.docID] = score
			}
		}

		docIDs := make([]string, 0, len(best))
		for docID := range best {
			docIDs = append(docIDs, docID)
		}
		sort.Slice(docIDs, func(a, b int) bool {
			if best[docIDs[a]] != best[docIDs[b]] {
				return best[docIDs[a]] > best[docIDs[b]]
			}
			return docIDs[a] < docIDs[b]
		})
		rankings[q.QueryID] = docIDs
	}
	return rankings, nil
}

// processRSS reports the current resident set size of this process
func processRSS() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}
