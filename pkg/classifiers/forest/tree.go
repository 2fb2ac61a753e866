package forest

import (
	"math"
	"math/rand"
	"sort"
)

// leafMarker marks a node without children.
const leafMarker = -1

// tree is a single CART tree stored as a flat node slice; node 0 is the root.
type tree struct {
	Nodes []node
	// Importance is the unnormalised impurity decrease per feature.
	Importance []float64
}

// node is a split (Left/Right set) or a leaf (Value set).
type node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64 // class probabilities at a leaf
}

// leaf walks a sample down to its leaf and returns the class distribution.
func (t *tree) leaf(sample []float64, nClasses int) []float64 {
	i := 0
	for t.Nodes[i].Left != leafMarker {
		n := &t.Nodes[i]
		v := sample[n.Feature]
		if math.IsNaN(v) {
			v = 0
		}
		if v <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	value := t.Nodes[i].Value
	if len(value) < nClasses {
		padded := make([]float64, nClasses)
		copy(padded, value)
		return padded
	}
	return value
}

// builder grows one tree from a bootstrap sample.
type builder struct {
	cols            [][]float64
	y               []int
	nClasses        int
	maxFeatures     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	rng             *rand.Rand

	nodes      []node
	importance []float64
	scratch    []sample
}

// sample pairs a feature value with the row it came from.
type sample struct {
	v   float64
	row int
}

// split is the best candidate found for a node.
type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) grow(idx []int) *tree {
	b.importance = make([]float64, len(b.cols))
	b.scratch = make([]sample, 0, len(idx))
	b.build(idx, 0)
	return &tree{Nodes: b.nodes, Importance: b.importance}
}

func (b *builder) build(idx []int, depth int) int {
	counts := b.counts(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, node{Left: leafMarker, Right: leafMarker})

	if len(idx) < b.minSamplesSplit || len(idx) < 2*b.minSamplesLeaf ||
		pure(counts) || (b.maxDepth > 0 && depth >= b.maxDepth) {
		b.nodes[id].Value = probabilities(counts, len(idx))
		return id
	}

	best, ok := b.bestSplit(idx, counts)
	if !ok {
		b.nodes[id].Value = probabilities(counts, len(idx))
		return id
	}

	var left, right []int
	col := b.cols[best.feature]
	for _, row := range idx {
		if col[row] <= best.threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	b.importance[best.feature] += best.gain
	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit draws candidate features without replacement until maxFeatures
// non-constant ones were evaluated, and keeps the largest impurity decrease.
func (b *builder) bestSplit(idx []int, counts []int) (split, bool) {
	n := float64(len(idx))
	parent := n * gini(counts, len(idx))

	best := split{gain: 0}
	found := false
	visited := 0
	for _, feature := range b.rng.Perm(len(b.cols)) {
		if visited >= b.maxFeatures {
			break
		}

		cand, constant := b.scanFeature(idx, feature, parent)
		if constant {
			continue
		}
		visited++
		if cand.gain > best.gain {
			best = cand
			found = true
		}
	}

	return best, found
}

// scanFeature sorts the node's rows by one feature and sweeps every threshold
// between distinct neighbouring values.
func (b *builder) scanFeature(idx []int, feature int, parent float64) (split, bool) {
	col := b.cols[feature]
	s := b.scratch[:0]
	for _, row := range idx {
		s = append(s, sample{v: col[row], row: row})
	}
	b.scratch = s

	sort.Slice(s, func(i, j int) bool { return s[i].v < s[j].v })
	if s[0].v == s[len(s)-1].v {
		return split{}, true
	}

	total := len(s)
	left := make([]int, b.nClasses)
	right := b.counts(idx)

	best := split{feature: feature}
	for i := 1; i < total; i++ {
		c := b.y[s[i-1].row]
		left[c]++
		right[c]--

		if s[i].v == s[i-1].v {
			continue
		}
		nl, nr := i, total-i
		if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
			continue
		}

		gain := parent - float64(nl)*gini(left, nl) - float64(nr)*gini(right, nr)
		if gain > best.gain {
			threshold := s[i-1].v + (s[i].v-s[i-1].v)/2
			if threshold >= s[i].v {
				threshold = s[i-1].v
			}
			best.gain = gain
			best.threshold = threshold
		}
	}

	return best, false
}

func (b *builder) counts(idx []int) []int {
	out := make([]int, b.nClasses)
	for _, row := range idx {
		out[b.y[row]]++
	}
	return out
}

// gini returns the gini impurity of a class histogram with n samples.
func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func pure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func probabilities(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(n)
	}
	return out
}
