package chunker

import (
	"fmt"
	"math"
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"
)

// Supported chunking strategies
const (
	StrategyFixed     = "fixed"
	StrategySentences = "sentences"
	StrategySemantic  = "semantic"
)

// DefaultSemanticThreshold is the cosine similarity below which a new
// semantic chunk is started
const DefaultSemanticThreshold = 0.7

// Span marks a token range [Start, End) within a document's token sequence
type Span struct {
	Start int
	End   int
}

// Chunk is one unit of a chunked document: its text plus the token span
// it covers in the full document
type Chunk struct {
	Text string
	Span Span
}

// Tokenizer is the subset of the tokenizer service the chunker needs
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Embedder provides pooled text embeddings for the semantic strategy
type Embedder interface {
	EmbedTexts(texts []string) ([][]float32, error)
}

// Chunker splits documents into chunks under a configured strategy
type Chunker struct {
	strategy   string
	chunkSize  int
	nSentences int
	threshold  float32
	tk         Tokenizer
	embedder   Embedder
}

// New creates a chunker for the given strategy. The embedder may be nil
// unless the strategy is semantic.
func New(strategy string, chunkSize, nSentences int, tk Tokenizer, embedder Embedder) (*Chunker, error) {
	switch strategy {
	case StrategyFixed, StrategySentences, StrategySemantic:
	default:
		return nil, fmt.Errorf("unknown chunking strategy: %s", strategy)
	}
	if strategy == StrategyFixed && chunkSize <= 0 {
		return nil, fmt.Errorf("fixed strategy requires a positive chunk size, got %d", chunkSize)
	}
	if strategy == StrategySentences && nSentences <= 0 {
		return nil, fmt.Errorf("sentences strategy requires a positive sentence count, got %d", nSentences)
	}
	if strategy == StrategySemantic && embedder == nil {
		return nil, fmt.Errorf("semantic strategy requires an embedder")
	}
	return &Chunker{
		strategy:   strategy,
		chunkSize:  chunkSize,
		nSentences: nSentences,
		threshold:  DefaultSemanticThreshold,
		tk:         tk,
		embedder:   embedder,
	}, nil
}

// Strategy returns the configured strategy name
func (c *Chunker) Strategy() string {
	return c.strategy
}

// SetSemanticThreshold overrides the boundary threshold for the semantic strategy
func (c *Chunker) SetSemanticThreshold(threshold float32) {
	c.threshold = threshold
}

// Chunk splits a document into chunks. The tokens argument must be the
// tokenization of text; spans are expressed in that token space.
func (c *Chunker) Chunk(text string, tokens []int) ([]Chunk, error) {
	if len(tokens) == 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	switch c.strategy {
	case StrategyFixed:
		return c.chunkFixed(tokens), nil
	case StrategySentences:
		return c.chunkSentences(text, tokens), nil
	case StrategySemantic:
		return c.chunkSemantic(text, tokens)
	}
	return nil, fmt.Errorf("unknown chunking strategy: %s", c.strategy)
}

// chunkFixed produces consecutive spans of chunkSize tokens. Spans are
// contiguous, non-overlapping and cover the whole token sequence; the
// final chunk may be shorter.
func (c *Chunker) chunkFixed(tokens []int) []Chunk {
	var chunks []Chunk
	for start := 0; start < len(tokens); start += c.chunkSize {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{
			Text: c.tk.Decode(tokens[start:end]),
			Span: Span{Start: start, End: end},
		})
	}
	return chunks
}

// chunkSentences groups nSentences Unicode sentences per chunk. Span
// lengths come from re-tokenizing each group, anchored at the running
// token offset and clipped to the document's token count.
func (c *Chunker) chunkSentences(text string, tokens []int) []Chunk {
	groups := c.sentenceGroups(text, c.nSentences)
	return c.spansFromGroups(groups, len(tokens))
}

// chunkSemantic embeds individual sentences and starts a new chunk when
// the similarity to the running chunk centroid drops below the threshold,
// or when the chunk would exceed chunkSize tokens.
func (c *Chunker) chunkSemantic(text string, tokens []int) ([]Chunk, error) {
	sents := splitSentences(text)
	if len(sents) == 0 {
		return nil, nil
	}

	embeds, err := c.embedder.EmbedTexts(sents)
	if err != nil {
		return nil, fmt.Errorf("failed to embed sentences for semantic chunking: %w", err)
	}
	if len(embeds) != len(sents) {
		return nil, fmt.Errorf("expected %d sentence embeddings, got %d", len(sents), len(embeds))
	}

	budget := c.chunkSize
	if budget <= 0 {
		budget = 256
	}

	var groups []string
	var current []string
	var centroid []float32
	currentTokens := 0

	for i, sent := range sents {
		sentTokens := len(c.tk.Encode(sent))
		boundary := false
		if len(current) > 0 {
			if currentTokens+sentTokens > budget {
				boundary = true
			} else if CosineSimilarity(embeds[i], centroid) < c.threshold {
				boundary = true
			}
		}

		if boundary {
			groups = append(groups, strings.Join(current, ""))
			current = current[:0]
			centroid = nil
			currentTokens = 0
		}

		current = append(current, sent)
		currentTokens += sentTokens
		centroid = accumulate(centroid, embeds[i])
	}
	if len(current) > 0 {
		groups = append(groups, strings.Join(current, ""))
	}

	return c.spansFromGroups(groups, len(tokens)), nil
}

// sentenceGroups joins every n consecutive sentences into one group
func (c *Chunker) sentenceGroups(text string, n int) []string {
	sents := splitSentences(text)
	var groups []string
	for start := 0; start < len(sents); start += n {
		end := start + n
		if end > len(sents) {
			end = len(sents)
		}
		groups = append(groups, strings.Join(sents[start:end], ""))
	}
	return groups
}

// spansFromGroups assigns token spans to chunk texts by walking a running
// token offset. The last span is extended to cover any remainder so the
// spans tile the full document.
func (c *Chunker) spansFromGroups(groups []string, totalTokens int) []Chunk {
	var chunks []Chunk
	offset := 0
	for _, group := range groups {
		if offset >= totalTokens {
			break
		}
		n := len(c.tk.Encode(group))
		end := offset + n
		if end > totalTokens {
			end = totalTokens
		}
		chunks = append(chunks, Chunk{
			Text: group,
			Span: Span{Start: offset, End: end},
		})
		offset = end
	}
	if len(chunks) > 0 && chunks[len(chunks)-1].Span.End < totalTokens {
		chunks[len(chunks)-1].Span.End = totalTokens
	}
	return chunks
}

// splitSentences segments text into Unicode sentences (UAX #29)
func splitSentences(text string) []string {
	var sents []string
	seg := sentences.FromString(text)
	for seg.Next() {
		s := seg.Value()
		if strings.TrimSpace(s) == "" {
			continue
		}
		sents = append(sents, s)
	}
	return sents
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Mismatched lengths compare over the shorter prefix; zero vectors yield 0.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func accumulate(centroid, v []float32) []float32 {
	if centroid == nil {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	for i := range centroid {
		if i < len(v) {
			centroid[i] += v[i]
		}
	}
	return centroid
}
