package metrics

import (
	"fmt"
	"math"
	"sort"
)

// DefaultKValues are the cutoffs reported for ranked metrics
var DefaultKValues = []int{1, 3, 5, 10}

// Ranking is an ordered list of document IDs, best first
type Ranking []string

// Qrels maps query ID -> doc ID -> graded relevance
type Qrels map[string]map[string]int

// Compute evaluates rankings against relevance judgments and returns a
// flat score map in the shape the results file expects, e.g. "ndcg_at_10".
// Queries without judgments are skipped; scores are averaged over the rest.
func Compute(rankings map[string]Ranking, qrels Qrels, kValues []int) map[string]float64 {
	if len(kValues) == 0 {
		kValues = DefaultKValues
	}

	scores := make(map[string]float64)
	counted := 0

	sums := make(map[string]float64)
	for queryID, ranking := range rankings {
		rel, ok := qrels[queryID]
		if !ok || len(rel) == 0 {
			continue
		}
		counted++

		for _, k := range kValues {
			sums[fmt.Sprintf("ndcg_at_%d", k)] += NDCGAt(ranking, rel, k)
			sums[fmt.Sprintf("recall_at_%d", k)] += RecallAt(ranking, rel, k)
			sums[fmt.Sprintf("precision_at_%d", k)] += PrecisionAt(ranking, rel, k)
			sums[fmt.Sprintf("mrr_at_%d", k)] += MRRAt(ranking, rel, k)
		}
		sums["map"] += AveragePrecision(ranking, rel)
	}

	if counted == 0 {
		return scores
	}
	for name, sum := range sums {
		scores[name] = sum / float64(counted)
	}
	return scores
}

// NDCGAt computes normalized discounted cumulative gain at cutoff k with
// graded relevance and the standard 2^rel - 1 gain
func NDCGAt(ranking Ranking, rel map[string]int, k int) float64 {
	dcg := 0.0
	for i, docID := range ranking {
		if i >= k {
			break
		}
		if r, ok := rel[docID]; ok && r > 0 {
			dcg += gain(r) / math.Log2(float64(i)+2)
		}
	}

	ideal := idealDCG(rel, k)
	if ideal == 0 {
		return 0
	}
	return dcg / ideal
}

// RecallAt is the fraction of relevant documents found in the top k
func RecallAt(ranking Ranking, rel map[string]int, k int) float64 {
	total := relevantCount(rel)
	if total == 0 {
		return 0
	}
	found := 0
	for i, docID := range ranking {
		if i >= k {
			break
		}
		if r, ok := rel[docID]; ok && r > 0 {
			found++
		}
	}
	return float64(found) / float64(total)
}

// PrecisionAt is the fraction of the top k that is relevant
func PrecisionAt(ranking Ranking, rel map[string]int, k int) float64 {
	if k <= 0 {
		return 0
	}
	found := 0
	for i, docID := range ranking {
		if i >= k {
			break
		}
		if r, ok := rel[docID]; ok && r > 0 {
			found++
		}
	}
	return float64(found) / float64(k)
}

// MRRAt is the reciprocal rank of the first relevant document in the top k
func MRRAt(ranking Ranking, rel map[string]int, k int) float64 {
	for i, docID := range ranking {
		if i >= k {
			break
		}
		if r, ok := rel[docID]; ok && r > 0 {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// AveragePrecision computes AP over the full ranking
func AveragePrecision(ranking Ranking, rel map[string]int) float64 {
	total := relevantCount(rel)
	if total == 0 {
		return 0
	}

	found := 0
	sum := 0.0
	for i, docID := range ranking {
		if r, ok := rel[docID]; ok && r > 0 {
			found++
			sum += float64(found) / float64(i+1)
		}
	}
	return sum / float64(total)
}

func gain(rel int) float64 {
	return math.Pow(2, float64(rel)) - 1
}

func idealDCG(rel map[string]int, k int) float64 {
	grades := make([]int, 0, len(rel))
	for _, r := range rel {
		if r > 0 {
			grades = append(grades, r)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(grades)))

	ideal := 0.0
	for i, r := range grades {
		if i >= k {
			break
		}
		ideal += gain(r) / math.Log2(float64(i)+2)
	}
	return ideal
}

func relevantCount(rel map[string]int) int {
	n := 0
	for _, r := range rel {
		if r > 0 {
			n++
		}
	}
	return n
}
