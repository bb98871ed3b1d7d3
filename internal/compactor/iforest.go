package compactor

import (
	"math"
	"math/rand"
)

// defaultSubsample is the standard isolation-forest sub-sampling size; trees
// see at most this many points.
const defaultSubsample = 256

// IsolationForest is an ensemble of random partitioning trees scoring how
// easily a point is isolated. Scores are in (0, 1]; higher means more
// isolated, i.e. more anomalous. The forest is rebuilt per candidate set and
// never persisted; determinism comes from the caller-supplied rng.
type IsolationForest struct {
	trees     []*isoNode
	subsample int
}

type isoNode struct {
	// internal node
	feature int
	split   float64
	left    *isoNode
	right   *isoNode
	// external node
	size int
	leaf bool
}

// NewIsolationForest grows an ensemble of `estimators` trees over X.
func NewIsolationForest(X [][]float64, estimators int, rng *rand.Rand) *IsolationForest {
	sub := defaultSubsample
	if len(X) < sub {
		sub = len(X)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sub) + 1)))

	f := &IsolationForest{subsample: sub}
	for i := 0; i < estimators; i++ {
		sample := make([][]float64, sub)
		for j := range sample {
			sample[j] = X[rng.Intn(len(X))]
		}
		f.trees = append(f.trees, growTree(sample, 0, heightLimit, rng))
	}
	return f
}

// Scores returns the anomaly score of every point in X.
func (f *IsolationForest) Scores(X [][]float64) []float64 {
	scores := make([]float64, len(X))
	norm := avgPathLength(f.subsample)
	if norm == 0 {
		norm = 1
	}
	for i, x := range X {
		var total float64
		for _, t := range f.trees {
			total += pathLength(t, x, 0)
		}
		mean := total / float64(len(f.trees))
		scores[i] = math.Pow(2, -mean/norm)
	}
	return scores
}

func growTree(sample [][]float64, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(sample) <= 1 || allIdentical(sample) {
		return &isoNode{leaf: true, size: len(sample)}
	}

	dims := len(sample[0])
	feature := rng.Intn(dims)
	lo, hi := sample[0][feature], sample[0][feature]
	for _, x := range sample {
		if x[feature] < lo {
			lo = x[feature]
		}
		if x[feature] > hi {
			hi = x[feature]
		}
	}
	if hi == lo {
		// Constant on the chosen feature; try again one level deeper rather
		// than splitting degenerately.
		return &isoNode{leaf: true, size: len(sample)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, x := range sample {
		if x[feature] < split {
			left = append(left, x)
		} else {
			right = append(right, x)
		}
	}

	return &isoNode{
		feature: feature,
		split:   split,
		left:    growTree(left, depth+1, limit, rng),
		right:   growTree(right, depth+1, limit, rng),
	}
}

func pathLength(n *isoNode, x []float64, depth int) float64 {
	if n.leaf {
		return float64(depth) + avgPathLength(n.size)
	}
	if x[n.feature] < n.split {
		return pathLength(n.left, x, depth+1)
	}
	return pathLength(n.right, x, depth+1)
}

// avgPathLength is c(n), the average path length of an unsuccessful BST
// search over n points; it normalizes raw path lengths into scores.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}

func allIdentical(sample [][]float64) bool {
	for i := 1; i < len(sample); i++ {
		for j := range sample[i] {
			if sample[i][j] != sample[0][j] {
				return false
			}
		}
	}
	return true
}
