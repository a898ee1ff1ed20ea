package pooling

import (
	"fmt"

	"chunked-eval/pkg/chunker"
)

// LongConfig controls the long late chunking macro-windows used for
// documents longer than the model's embedding window
type LongConfig struct {
	EmbedSize   int // tokens per macro-window, 0 disables long late chunking
	OverlapSize int // tokens shared between neighbouring macro-windows
}

// Enabled reports whether long late chunking is active
func (c LongConfig) Enabled() bool {
	return c.EmbedSize > 0
}

// Window is one macro-window over a document's token sequence. [Start, End)
// is the embedded region; [OwnStart, OwnEnd) is the sub-region whose token
// embeddings this window contributes to the stitched result.
type Window struct {
	Start    int
	End      int
	OwnStart int
	OwnEnd   int
}

// MacroWindows splits nTokens into overlapping macro-windows. Neighbouring
// windows share OverlapSize tokens of context; ownership regions tile
// [0, nTokens) exactly, so stitching assigns each token one embedding.
func MacroWindows(nTokens int, cfg LongConfig) []Window {
	if nTokens <= 0 {
		return nil
	}
	if !cfg.Enabled() || nTokens <= cfg.EmbedSize {
		return []Window{{Start: 0, End: nTokens, OwnStart: 0, OwnEnd: nTokens}}
	}

	step := cfg.EmbedSize - cfg.OverlapSize
	if step <= 0 {
		step = cfg.EmbedSize
	}

	var windows []Window
	for start := 0; start < nTokens; start += step {
		end := start + cfg.EmbedSize
		if end > nTokens {
			end = nTokens
		}

		w := Window{Start: start, End: end, OwnStart: start, OwnEnd: end}
		if len(windows) > 0 {
			// Overlap region belongs to the earlier window
			w.OwnStart = windows[len(windows)-1].OwnEnd
		}
		windows = append(windows, w)

		if end == nTokens {
			break
		}
	}
	return windows
}

// Stitch assembles a single token embedding matrix from per-window
// matrices, taking each window's owned region
func Stitch(windows []Window, matrices [][][]float32) ([][]float32, error) {
	if len(windows) != len(matrices) {
		return nil, fmt.Errorf("expected %d window matrices, got %d", len(windows), len(matrices))
	}

	var out [][]float32
	for i, w := range windows {
		m := matrices[i]
		if len(m) != w.End-w.Start {
			return nil, fmt.Errorf("window %d: expected %d token embeddings, got %d", i, w.End-w.Start, len(m))
		}
		out = append(out, m[w.OwnStart-w.Start:w.OwnEnd-w.Start]...)
	}
	return out, nil
}

// LateChunk mean-pools contiguous token-embedding spans into one vector
// per chunk. Spans past the end of the matrix (a truncated document) are
// clipped; a span that is fully clipped away yields a zero vector of the
// embedding dimension, never NaN.
func LateChunk(tokenEmbeddings [][]float32, spans []chunker.Span) [][]float32 {
	dim := 0
	if len(tokenEmbeddings) > 0 {
		dim = len(tokenEmbeddings[0])
	}

	pooled := make([][]float32, len(spans))
	for i, span := range spans {
		start, end := span.Start, span.End
		if end > len(tokenEmbeddings) {
			end = len(tokenEmbeddings)
		}
		if start > end {
			start = end
		}
		pooled[i] = MeanPool(tokenEmbeddings[start:end], dim)
	}
	return pooled
}

// MeanPool averages token embeddings into a single vector. Empty input
// yields a zero vector of the given dimension.
func MeanPool(tokenEmbeddings [][]float32, dim int) []float32 {
	out := make([]float32, dim)
	if len(tokenEmbeddings) == 0 {
		return out
	}

	for _, emb := range tokenEmbeddings {
		for j := 0; j < dim && j < len(emb); j++ {
			out[j] += emb[j]
		}
	}
	n := float32(len(tokenEmbeddings))
	for j := range out {
		out[j] /= n
	}
	return out
}
