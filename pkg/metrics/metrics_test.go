package metrics

import (
	"math"
	"testing"
)

func almostEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestNDCGAt(t *testing.T) {
	rel := map[string]int{"d1": 1, "d2": 2}

	t.Run("perfect ranking", func(t *testing.T) {
		// Ideal order is d2 (grade 2) then d1 (grade 1)
		almostEqual(t, "NDCGAt", NDCGAt(Ranking{"d2", "d1"}, rel, 10), 1)
	})

	t.Run("swapped ranking", func(t *testing.T) {
		dcg := 1/math.Log2(2) + 3/math.Log2(3)
		ideal := 3/math.Log2(2) + 1/math.Log2(3)
		almostEqual(t, "NDCGAt", NDCGAt(Ranking{"d1", "d2"}, rel, 10), dcg/ideal)
	})

	t.Run("no relevant retrieved", func(t *testing.T) {
		almostEqual(t, "NDCGAt", NDCGAt(Ranking{"x", "y"}, rel, 10), 0)
	})

	t.Run("cutoff respected", func(t *testing.T) {
		// d2 is ranked below the cutoff
		dcg := 1 / math.Log2(2)
		ideal := 3 / math.Log2(2)
		almostEqual(t, "NDCGAt", NDCGAt(Ranking{"d1", "d2"}, rel, 1), dcg/ideal)
	})

	t.Run("no judgments", func(t *testing.T) {
		almostEqual(t, "NDCGAt", NDCGAt(Ranking{"d1"}, map[string]int{}, 10), 0)
	})
}

func TestRecallAt(t *testing.T) {
	rel := map[string]int{"d1": 1, "d2": 1, "d3": 0}

	almostEqual(t, "RecallAt k=1", RecallAt(Ranking{"d1", "d2"}, rel, 1), 0.5)
	almostEqual(t, "RecallAt k=10", RecallAt(Ranking{"d1", "d2"}, rel, 10), 1)
	// Zero-grade judgments never count as relevant
	almostEqual(t, "RecallAt zero grade", RecallAt(Ranking{"d3"}, rel, 10), 0)
}

func TestPrecisionAt(t *testing.T) {
	rel := map[string]int{"d1": 1}

	almostEqual(t, "PrecisionAt k=1", PrecisionAt(Ranking{"d1", "x"}, rel, 1), 1)
	almostEqual(t, "PrecisionAt k=2", PrecisionAt(Ranking{"d1", "x"}, rel, 2), 0.5)
	almostEqual(t, "PrecisionAt k=0", PrecisionAt(Ranking{"d1"}, rel, 0), 0)
}

func TestMRRAt(t *testing.T) {
	rel := map[string]int{"d1": 1}

	almostEqual(t, "MRRAt first", MRRAt(Ranking{"d1", "x"}, rel, 10), 1)
	almostEqual(t, "MRRAt third", MRRAt(Ranking{"x", "y", "d1"}, rel, 10), 1.0/3)
	almostEqual(t, "MRRAt cutoff", MRRAt(Ranking{"x", "y", "d1"}, rel, 2), 0)
}

func TestAveragePrecision(t *testing.T) {
	rel := map[string]int{"d1": 1, "d2": 1}

	// Relevant at ranks 1 and 3: AP = (1/1 + 2/3) / 2
	almostEqual(t, "AveragePrecision", AveragePrecision(Ranking{"d1", "x", "d2"}, rel), (1+2.0/3)/2)
	almostEqual(t, "AveragePrecision empty", AveragePrecision(Ranking{"x"}, map[string]int{}), 0)
}

func TestCompute(t *testing.T) {
	rankings := map[string]Ranking{
		"q1": {"d1", "d2"},
		"q2": {"d2", "d1"},
		"q3": {"d1"}, // no judgments, skipped
	}
	qrels := Qrels{
		"q1": {"d1": 1},
		"q2": {"d2": 1},
	}

	scores := Compute(rankings, qrels, []int{1, 10})

	almostEqual(t, "ndcg_at_1", scores["ndcg_at_1"], 1)
	almostEqual(t, "recall_at_1", scores["recall_at_1"], 1)
	almostEqual(t, "mrr_at_10", scores["mrr_at_10"], 1)
	almostEqual(t, "map", scores["map"], 1)

	if _, ok := scores["ndcg_at_10"]; !ok {
		t.Error("expected ndcg_at_10 to be reported")
	}
	if _, ok := scores["precision_at_1"]; !ok {
		t.Error("expected precision_at_1 to be reported")
	}
}

func TestComputeNoJudgedQueries(t *testing.T) {
	scores := Compute(map[string]Ranking{"q1": {"d1"}}, Qrels{}, nil)
	if len(scores) != 0 {
		t.Errorf("expected empty score map, got %v", scores)
	}
}
