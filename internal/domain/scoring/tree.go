package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/reimburse/internal/domain/features"
)

// TreeModel is the on-disk tree-ensemble artifact: an XGBoost JSON tree dump
// wrapped with the schema id and base score it was trained with.
type TreeModel struct {
	Schema       string     `json:"schema"`
	BaseScore    float64    `json:"base_score"`
	FeatureNames []string   `json:"feature_names,omitempty"`
	Trees        []TreeNode `json:"trees"`
}

// TreeNode is one node of a dumped tree. Split nodes carry Split and
// SplitCondition; leaves carry Leaf.
type TreeNode struct {
	NodeID         int        `json:"nodeid"`
	Split          string     `json:"split,omitempty"`
	SplitCondition float64    `json:"split_condition,omitempty"`
	Yes            *int       `json:"yes,omitempty"`
	No             *int       `json:"no,omitempty"`
	Missing        *int       `json:"missing,omitempty"`
	Leaf           *float64   `json:"leaf,omitempty"`
	Children       []TreeNode `json:"children,omitempty"`
}

type compiledNode struct {
	leaf      bool
	value     float32
	feature   int
	threshold float32
	yes       int
	no        int
	missing   int
}

type compiledTree []compiledNode

// TreeEnsemble is an immutable gradient-boosted regression ensemble.
type TreeEnsemble struct {
	schema    string
	width     int
	baseScore float32
	trees     []compiledTree
}

// ParseTreeModel decodes and compiles a tree-ensemble artifact.
func ParseTreeModel(data []byte) (*TreeEnsemble, error) {
	var doc TreeModel
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedModel, err)
	}
	return NewTreeEnsemble(doc)
}

// NewTreeEnsemble resolves every split against the model's schema and
// validates tree structure once, so Score never fails on structure.
func NewTreeEnsemble(doc TreeModel) (*TreeEnsemble, error) {
	schema, err := features.Lookup(doc.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedModel, err)
	}
	if doc.FeatureNames != nil && !slices.Equal(doc.FeatureNames, schema.Names()) {
		return nil, fmt.Errorf("%w: feature_names %v do not match schema %q %v",
			ErrSchemaMismatch, doc.FeatureNames, schema.ID(), schema.Names())
	}
	if len(doc.Trees) == 0 {
		return nil, fmt.Errorf("%w: ensemble has no trees", ErrMalformedModel)
	}

	e := &TreeEnsemble{
		schema:    schema.ID(),
		width:     schema.Len(),
		baseScore: float32(doc.BaseScore),
		trees:     make([]compiledTree, 0, len(doc.Trees)),
	}
	for i := range doc.Trees {
		t, err := compileTree(schema, &doc.Trees[i])
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		e.trees = append(e.trees, t)
	}
	return e, nil
}

// Schema implements Scorer.
func (e *TreeEnsemble) Schema() string { return e.schema }

// Trees returns the number of trees in the ensemble.
func (e *TreeEnsemble) Trees() int { return len(e.trees) }

// Score sums the leaf reached in every tree onto the base score. Features
// are compared in float32, matching how XGBoost stores split thresholds.
func (e *TreeEnsemble) Score(_ context.Context, v features.Vector) (float64, error) {
	if err := checkVector(e.schema, e.width, v); err != nil {
		return 0, err
	}

	var sum float32
	for _, t := range e.trees {
		sum += t.leaf(v.Values)
	}
	return float64(sum + e.baseScore), nil
}

func (t compiledTree) leaf(x []float64) float32 {
	i := 0
	for !t[i].leaf {
		n := &t[i]
		switch v := x[n.feature]; {
		case math.IsNaN(v):
			i = n.missing
		case float32(v) < n.threshold:
			i = n.yes
		default:
			i = n.no
		}
	}
	return t[i].value
}

func compileTree(schema features.Schema, root *TreeNode) (compiledTree, error) {
	byID := make(map[int]*TreeNode)
	if err := index(root, byID); err != nil {
		return nil, err
	}
	if _, ok := byID[0]; !ok || root.NodeID != 0 {
		return nil, fmt.Errorf("%w: root must be node 0", ErrMalformedModel)
	}

	// Node ids are dense: a tree of n nodes numbers them 0..n-1.
	size := len(byID)
	for id := range byID {
		if id < 0 || id >= size {
			return nil, fmt.Errorf("%w: node id %d outside 0..%d", ErrMalformedModel, id, size-1)
		}
	}

	t := make(compiledTree, size)
	present := make([]bool, size)
	for id, n := range byID {
		present[id] = true
		if n.Leaf != nil {
			t[id] = compiledNode{leaf: true, value: float32(*n.Leaf)}
			continue
		}
		if n.Yes == nil || n.No == nil {
			return nil, fmt.Errorf("%w: node %d has no children", ErrMalformedModel, id)
		}
		feature, err := resolveFeature(schema, n.Split)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}
		missing := *n.Yes
		if n.Missing != nil {
			missing = *n.Missing
		}
		t[id] = compiledNode{
			feature:   feature,
			threshold: float32(n.SplitCondition),
			yes:       *n.Yes,
			no:        *n.No,
			missing:   missing,
		}
	}

	for id, n := range t {
		if !present[id] || n.leaf {
			continue
		}
		for _, child := range []int{n.yes, n.no, n.missing} {
			if child < 0 || child >= size || !present[child] {
				return nil, fmt.Errorf("%w: node %d points at unknown node %d", ErrMalformedModel, id, child)
			}
		}
	}
	if err := t.checkAcyclic(); err != nil {
		return nil, err
	}
	return t, nil
}

func index(n *TreeNode, byID map[int]*TreeNode) error {
	if _, dup := byID[n.NodeID]; dup {
		return fmt.Errorf("%w: duplicate node id %d", ErrMalformedModel, n.NodeID)
	}
	byID[n.NodeID] = n
	for i := range n.Children {
		if err := index(&n.Children[i], byID); err != nil {
			return err
		}
	}
	return nil
}

// checkAcyclic walks from the root and fails if any path revisits a node.
func (t compiledTree) checkAcyclic() error {
	const (
		unseen = iota
		active
		done
	)
	state := make([]int, len(t))
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case active:
			return fmt.Errorf("%w: cycle through node %d", ErrMalformedModel, i)
		case done:
			return nil
		}
		state[i] = active
		if n := t[i]; !n.leaf {
			for _, child := range []int{n.yes, n.no, n.missing} {
				if err := visit(child); err != nil {
					return err
				}
			}
		}
		state[i] = done
		return nil
	}
	return visit(0)
}

// resolveFeature maps a split name onto a vector position. XGBoost dumps use
// the training feature names when known, else fN.
func resolveFeature(schema features.Schema, split string) (int, error) {
	if i, ok := schema.Index(split); ok {
		return i, nil
	}
	if rest, ok := strings.CutPrefix(split, "f"); ok {
		if i, err := strconv.Atoi(rest); err == nil && i >= 0 && i < schema.Len() {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown split feature %q for schema %q", ErrMalformedModel, split, schema.ID())
}
