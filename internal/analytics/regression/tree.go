package regression

import (
	"math"
	"math/rand"
	"sort"
)

// Node is a single decision-tree node. Fields are exported for gob
// serialization of persisted estimators.
type Node struct {
	Feature   int // split feature index, -1 for leaves
	Threshold float64
	Left      *Node
	Right     *Node
	Value     float64 // mean target of the leaf's samples
}

// Tree is a variance-minimizing regression tree.
type Tree struct {
	Root *Node
}

// treeParams bundles the growth constraints passed down the recursion.
type treeParams struct {
	maxDepth    int // 0 means unlimited
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand
}

// growTree fits a tree on the samples selected by idx.
func growTree(features [][]float64, targets []float64, idx []int, params treeParams) *Tree {
	return &Tree{Root: growNode(features, targets, idx, 0, params)}
}

func growNode(features [][]float64, targets []float64, idx []int, depth int, params treeParams) *Node {
	leaf := &Node{Feature: -1, Value: meanAt(targets, idx)}

	if len(idx) < 2*params.minLeaf {
		return leaf
	}
	if params.maxDepth > 0 && depth >= params.maxDepth {
		return leaf
	}
	if constantAt(targets, idx) {
		return leaf
	}

	feature, threshold, ok := bestSplit(features, targets, idx, params)
	if !ok {
		return leaf
	}

	var left, right []int
	for _, i := range idx {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < params.minLeaf || len(right) < params.minLeaf {
		return leaf
	}

	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Value:     leaf.Value,
		Left:      growNode(features, targets, left, depth+1, params),
		Right:     growNode(features, targets, right, depth+1, params),
	}
}

// bestSplit scans a random feature subset for the split minimizing the
// summed squared error of the two children.
func bestSplit(features [][]float64, targets []float64, idx []int, params treeParams) (int, float64, bool) {
	numFeatures := len(features[idx[0]])
	candidates := sampleFeatures(numFeatures, params.maxFeatures, params.rng)

	bestScore := math.Inf(1)
	bestFeature := -1
	bestThreshold := 0.0

	sorted := make([]int, len(idx))
	for _, feature := range candidates {
		copy(sorted, idx)
		f := feature
		sort.Slice(sorted, func(a, b int) bool {
			return features[sorted[a]][f] < features[sorted[b]][f]
		})

		// Incremental left/right sums over the sorted order.
		var leftSum, leftSq float64
		rightSum, rightSq := sumsAt(targets, sorted)

		for i := 0; i < len(sorted)-1; i++ {
			y := targets[sorted[i]]
			leftSum += y
			leftSq += y * y
			rightSum -= y
			rightSq -= y * y

			// Can't split between equal feature values.
			if features[sorted[i]][f] == features[sorted[i+1]][f] {
				continue
			}

			nLeft := float64(i + 1)
			nRight := float64(len(sorted) - i - 1)
			if int(nLeft) < params.minLeaf || int(nRight) < params.minLeaf {
				continue
			}

			// SSE = sum(y^2) - n*mean^2 for each side.
			score := (leftSq - leftSum*leftSum/nLeft) + (rightSq - rightSum*rightSum/nRight)
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = (features[sorted[i]][f] + features[sorted[i+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

// sampleFeatures picks maxFeatures distinct feature indices at random.
func sampleFeatures(numFeatures, maxFeatures int, rng *rand.Rand) []int {
	if maxFeatures <= 0 || maxFeatures >= numFeatures {
		all := make([]int, numFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := rng.Perm(numFeatures)
	return perm[:maxFeatures]
}

// Predict walks the tree for a single feature vector.
func (t *Tree) Predict(features []float64) float64 {
	node := t.Root
	for node.Feature >= 0 {
		if features[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

func meanAt(targets []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += targets[i]
	}
	return sum / float64(len(idx))
}

func sumsAt(targets []float64, idx []int) (sum, sq float64) {
	for _, i := range idx {
		y := targets[i]
		sum += y
		sq += y * y
	}
	return sum, sq
}

func constantAt(targets []float64, idx []int) bool {
	first := targets[idx[0]]
	for _, i := range idx[1:] {
		if targets[i] != first {
			return false
		}
	}
	return true
}
