package forest

import (
	"math/rand"
	"sort"
)

// Node is one decision node in a regression tree. Leaves carry the mean
// target of their training samples; internal nodes route on
// x[Feature] <= Threshold.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Leaf      bool
}

// Tree is a CART regression tree stored as a flat node slice with the
// root at index 0.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for one sample.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	x          [][]float64
	y          []float64
	minLeaf    int
	maxDepth   int
	importance []float64 // summed impurity decrease per feature
	nodes      []Node
}

// fitTree grows one tree on a bootstrap sample drawn with rng.
func fitTree(x [][]float64, y []float64, minLeaf, maxDepth int, rng *rand.Rand) (*Tree, []float64) {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = rng.Intn(len(y))
	}

	b := &treeBuilder{
		x:          x,
		y:          y,
		minLeaf:    minLeaf,
		maxDepth:   maxDepth,
		importance: make([]float64, featureCount(x)),
	}
	b.grow(idx, 0)
	return &Tree{Nodes: b.nodes}, b.importance
}

func featureCount(x [][]float64) int {
	if len(x) == 0 {
		return 0
	}
	return len(x[0])
}

// grow appends the subtree for idx and returns its root index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sumSq - sum*sum/n

	if sse <= 1e-12 || len(idx) < 2*b.minLeaf || (b.maxDepth > 0 && depth >= b.maxDepth) {
		b.nodes[self] = Node{Leaf: true, Value: mean}
		return self
	}

	feature, threshold, gain, ok := b.bestSplit(idx, sse)
	if !ok {
		b.nodes[self] = Node{Leaf: true, Value: mean}
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.importance[feature] += gain
	leftRoot := b.grow(left, depth+1)
	rightRoot := b.grow(right, depth+1)
	b.nodes[self] = Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      leftRoot,
		Right:     rightRoot,
	}
	return self
}

// bestSplit searches every feature for the threshold that removes the
// most squared error from the node.
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (feature int, threshold, gain float64, ok bool) {
	type sample struct {
		v float64
		y float64
	}
	samples := make([]sample, len(idx))

	for f := 0; f < featureCount(b.x); f++ {
		for j, i := range idx {
			samples[j] = sample{v: b.x[i][f], y: b.y[i]}
		}
		sort.Slice(samples, func(a, c int) bool { return samples[a].v < samples[c].v })

		var leftSum, leftSq float64
		var totalSum, totalSq float64
		for _, s := range samples {
			totalSum += s.y
			totalSq += s.y * s.y
		}

		for j := 0; j < len(samples)-1; j++ {
			leftSum += samples[j].y
			leftSq += samples[j].y * samples[j].y
			if samples[j].v == samples[j+1].v {
				continue
			}
			nl := float64(j + 1)
			nr := float64(len(samples) - j - 1)
			if int(nl) < b.minLeaf || int(nr) < b.minLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			childSSE := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			g := parentSSE - childSSE
			if g > gain {
				gain = g
				feature = f
				threshold = (samples[j].v + samples[j+1].v) / 2
				ok = true
			}
		}
	}

	return feature, threshold, gain, ok
}
