// Package tree provides a CART decision tree classifier compatible with
// scikit-learn's DecisionTreeClassifier.
package tree

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// featureThreshold is the smallest gap between two values that may be split.
const featureThreshold = 1e-7

// DecisionTreeClassifier grows a binary tree greedily, choosing at every node
// the threshold that most reduces the weighted impurity of its children.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // features examined per split; 0 means all
	randomState     uint64

	// Fitted tree
	nodes        []node
	classes_     []int
	nClasses_    int
	importances_ []float64
	depth_       int
}

type node struct {
	feature   int
	threshold float64
	left      int // -1 for a leaf
	right     int
	impurity  float64
	nSamples  int
	value     []float64 // class fractions
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure, "gini" or "entropy".
func WithCriterion(c string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = c }
}

// WithMaxDepth limits the tree depth; 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum size of each child.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are examined per split.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithRandomState seeds the feature permutation drawn at every node.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	switch {
	case dt.criterion != "gini" && dt.criterion != "entropy":
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	case dt.maxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", dt.maxDepth)
	case dt.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	case dt.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	case dt.maxFeatures < 0:
		return errors.NewValidationError("max_features", "must be >= 0", dt.maxFeatures)
	}
	return nil
}

// Fit grows the tree on every row of X.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	n, _ := X.Dims()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return dt.FitSample(X, y, idx)
}

// FitSample grows the tree on the rows listed in idx. A repeated index counts
// as a repeated sample. Classes are taken from all of y, so every tree fitted
// on a sample of the same data has the same PredictProba columns.
func (dt *DecisionTreeClassifier) FitSample(X, y mat.Matrix, idx []int) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if len(idx) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty sample", errors.ErrEmptyData)
	}
	classes, err := model.Classes("DecisionTreeClassifier.Fit", y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("DecisionTreeClassifier.Fit", X, nSamples, nFeatures, 0); err != nil {
		return err
	}

	b := &builder{
		dt:          dt,
		cols:        make([][]float64, nFeatures),
		labels:      model.ClassIndex(y, classes),
		nClasses:    len(classes),
		rng:         rand.New(rand.NewPCG(dt.randomState, dt.randomState^0x5851f42d4c957f2d)),
		importances: make([]float64, nFeatures),
		maxFeatures: nFeatures,
	}
	if dt.maxFeatures > 0 && dt.maxFeatures < nFeatures {
		b.maxFeatures = dt.maxFeatures
	}
	for j := range b.cols {
		b.cols[j] = mat.Col(nil, j, X)
	}
	b.grow(slices.Clone(idx), 0)

	if total := floats.Sum(b.importances); total > 0 {
		floats.Scale(1/total, b.importances)
	}
	dt.nodes = b.nodes
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.importances_ = b.importances
	dt.depth_ = b.depth
	dt.state.SetDimensions(nFeatures, len(idx))
	dt.state.SetFitted()
	return nil
}

type builder struct {
	dt          *DecisionTreeClassifier
	cols        [][]float64
	labels      []int
	nClasses    int
	rng         *rand.Rand
	nodes       []node
	importances []float64
	maxFeatures int
	depth       int
}

type split struct {
	feature   int
	threshold float64
	pos       int
	proxy     float64
	order     []int
}

func (b *builder) counts(idx []int) []float64 {
	c := make([]float64, b.nClasses)
	for _, i := range idx {
		c[b.labels[i]]++
	}
	return c
}

func (b *builder) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	var imp float64
	switch b.dt.criterion {
	case "entropy":
		for _, c := range counts {
			if c > 0 {
				p := c / n
				imp -= p * math.Log2(p)
			}
		}
	default:
		imp = 1
		for _, c := range counts {
			p := c / n
			imp -= p * p
		}
	}
	return imp
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	b.depth = max(b.depth, depth)
	counts := b.counts(idx)
	n := float64(len(idx))
	imp := b.impurity(counts, n)
	value := slices.Clone(counts)
	floats.Scale(1/n, value)

	id := len(b.nodes)
	b.nodes = append(b.nodes, node{feature: -1, left: -1, right: -1, impurity: imp, nSamples: len(idx), value: value})

	dt := b.dt
	if (dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		len(idx) < dt.minSamplesSplit ||
		len(idx) < 2*dt.minSamplesLeaf ||
		imp <= 1e-12 {
		return id
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		return id
	}
	left, right := best.order[:best.pos], best.order[best.pos:]
	lc, rc := b.counts(left), b.counts(right)
	nl, nr := float64(len(left)), float64(len(right))
	b.importances[best.feature] += n*imp - nl*b.impurity(lc, nl) - nr*b.impurity(rc, nr)

	l := b.grow(slices.Clone(left), depth+1)
	r := b.grow(slices.Clone(right), depth+1)
	b.nodes[id].feature = best.feature
	b.nodes[id].threshold = best.threshold
	b.nodes[id].left = l
	b.nodes[id].right = r
	return id
}

// bestSplit visits features in a random order until maxFeatures
// non-constant ones have been examined.
func (b *builder) bestSplit(idx []int) (split, bool) {
	minLeaf := b.dt.minSamplesLeaf
	n := len(idx)
	best := split{proxy: math.Inf(-1)}
	found := false

	visited := 0
	for _, f := range b.rng.Perm(len(b.cols)) {
		if visited >= b.maxFeatures {
			break
		}
		col := b.cols[f]
		order := slices.Clone(idx)
		slices.SortStableFunc(order, func(a, c int) int { return cmp.Compare(col[a], col[c]) })
		if col[order[n-1]] <= col[order[0]]+featureThreshold {
			continue
		}
		visited++

		left := make([]float64, b.nClasses)
		right := b.counts(order)
		for p := 1; p < n; p++ {
			k := b.labels[order[p-1]]
			left[k]++
			right[k]--
			if p < minLeaf || n-p < minLeaf {
				continue
			}
			lo, hi := col[order[p-1]], col[order[p]]
			if hi <= lo+featureThreshold {
				continue
			}
			nl, nr := float64(p), float64(n-p)
			proxy := -(nl*b.impurity(left, nl) + nr*b.impurity(right, nr))
			if proxy > best.proxy {
				threshold := lo/2 + hi/2
				if threshold == hi || math.IsInf(threshold, 0) {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, pos: p, proxy: proxy, order: order}
				found = true
			}
		}
	}
	return best, found
}

func (dt *DecisionTreeClassifier) leaf(row []float64) *node {
	nd := &dt.nodes[0]
	for nd.left >= 0 {
		if row[nd.feature] <= nd.threshold {
			nd = &dt.nodes[nd.left]
		} else {
			nd = &dt.nodes[nd.right]
		}
	}
	return nd
}

// PredictProba returns the class fractions of the leaf each row falls in,
// one column per entry of Classes.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, dt.nClasses_, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, dt.leaf(mat.Row(nil, i, X)).value)
	}
	return out, nil
}

// Predict returns the majority class of each row's leaf.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "Predict"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		value := dt.leaf(mat.Row(nil, i, X)).value
		out.Set(i, 0, float64(dt.classes_[floats.MaxIdx(value)]))
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(dt, X, y)
}

// Classes returns the class labels in PredictProba column order.
func (dt *DecisionTreeClassifier) Classes() []int { return slices.Clone(dt.classes_) }

// GetFeatureImportances returns the normalised total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return slices.Clone(dt.importances_)
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth_ }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	var n int
	for _, nd := range dt.nodes {
		if nd.left < 0 {
			n++
		}
	}
	return n
}

// GetNodeCount returns the number of nodes.
func (dt *DecisionTreeClassifier) GetNodeCount() int { return len(dt.nodes) }

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets hyperparameters by their scikit-learn names.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.criterion, ok = value.(string)
		case "max_depth":
			dt.maxDepth, ok = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.maxFeatures, ok = value.(int)
		case "random_state":
			dt.randomState, ok = value.(uint64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return dt.validate()
}
