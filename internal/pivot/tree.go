// Package pivot implements the header tree builder and the pivot state
// controller: folding flat grouped query rows into a
// nested row/column header hierarchy with span arithmetic, collapse state,
// and live recalculation.
package pivot

import (
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"isometry/internal/model"
)

var collator = collate.New(language.English)

// Build runs the full build/sort/span algorithm
// over rows in query order, producing one axis's tree.
func Build(rows []model.Row, facets []model.Facet, axis model.HeaderAxis) *model.HeaderTree {
	nodeIndex := make(map[string]*model.HeaderNode)
	var roots []*model.HeaderNode

	for _, row := range rows {
		count := row.GetCount()
		path := make([]string, 0, len(facets))
		var parent *model.HeaderNode

		for depth, f := range facets {
			val := row.GetString(f.ID)
			path = append(path, val)
			id := strings.Join(path, "|")

			node, ok := nodeIndex[id]
			if !ok {
				nodePath := make([]string, len(path))
				copy(nodePath, path)
				node = &model.HeaderNode{
					ID:    id,
					Facet: f,
					Value: val,
					Label: formatLabel(f, val),
					Depth: depth,
					Path:  nodePath,
				}
				nodeIndex[id] = node
				if parent == nil {
					roots = append(roots, node)
				} else {
					node.Parent = parent
					parent.Children = append(parent.Children, node)
				}
			}
			node.Aggregate.Count += count
			parent = node
		}
	}

	tree := &model.HeaderTree{Axis: axis, Facets: facets, Roots: roots, MaxDepth: len(facets)}
	sortChildren(tree.Roots, facets, 0)
	Recalculate(tree)
	return tree
}

// sortChildren sorts siblings at every depth by that level's facet
// SortOrder, then recurses.
func sortChildren(nodes []*model.HeaderNode, facets []model.Facet, depth int) {
	if depth >= len(facets) || len(nodes) == 0 {
		return
	}
	f := facets[depth]
	sortNodes(nodes, f)
	for _, n := range nodes {
		sortChildren(n.Children, facets, depth+1)
	}
}

func sortNodes(nodes []*model.HeaderNode, f model.Facet) {
	switch f.SortOrder {
	case model.SortDesc:
		stableSort(nodes, func(a, b *model.HeaderNode) bool { return collator.CompareString(a.Value, b.Value) > 0 })
	case model.SortCustom:
		pos := make(map[string]int, len(f.Options))
		for i, v := range f.Options {
			pos[v] = i
		}
		stableSort(nodes, func(a, b *model.HeaderNode) bool {
			pa, aok := pos[a.Value]
			pb, bok := pos[b.Value]
			switch {
			case aok && bok:
				return pa < pb
			case aok && !bok:
				return true
			case !aok && bok:
				return false
			default:
				return false
			}
		})
	default: // SortAsc and unset
		stableSort(nodes, func(a, b *model.HeaderNode) bool { return collator.CompareString(a.Value, b.Value) < 0 })
	}
}

// stableSort is a tiny insertion sort: facet cardinalities at one level are
// small (typically dozens, never more than a few hundred distinct values),
// so this is both stable and fast enough without pulling in sort.Slice's
// reflection overhead for a less-than predicate this simple.
func stableSort(nodes []*model.HeaderNode, less func(a, b *model.HeaderNode) bool) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && less(nodes[j], nodes[j-1]); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

// Recalculate reruns span/index/leaves without
// re-sorting or re-aggregating. Call after any Collapsed mutation.
func Recalculate(tree *model.HeaderTree) {
	leaves := make([]*model.HeaderNode, 0)
	startIndex := 0
	for _, root := range tree.Roots {
		startIndex = assignSpan(root, startIndex, &leaves)
	}
	tree.Leaves = leaves
	tree.LeafCount = len(leaves)
}

// assignSpan is the recursive DFS of step 3: sets span/startIndex on node
// and its expanded descendants, appends terminals to leaves, and returns
// the next available startIndex for a following sibling.
func assignSpan(node *model.HeaderNode, startIndex int, leaves *[]*model.HeaderNode) int {
	node.StartIndex = startIndex

	if node.Collapsed || len(node.Children) == 0 {
		node.Span = 1
		*leaves = append(*leaves, node)
		return startIndex + 1
	}

	childStart := startIndex
	for _, child := range node.Children {
		childStart = assignSpan(child, childStart, leaves)
	}
	node.Span = childStart - startIndex
	return childStart
}

// formatLabel applies the month/quarter/week rendering rules; every other
// facet value renders as itself.
func formatLabel(f model.Facet, value string) string {
	switch f.DataType {
	case model.DataDate:
		if label, ok := monthLabel(f.TimeFormat, value); ok {
			return label
		}
		if label, ok := quarterLabel(f.TimeFormat, value); ok {
			return label
		}
		if label, ok := weekLabel(f.TimeFormat, value); ok {
			return label
		}
	}
	return value
}

var monthNames = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func monthLabel(timeFormat, value string) (string, bool) {
	if timeFormat != "%m" {
		return "", false
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 12 {
		return "", false
	}
	return monthNames[n-1], true
}

func quarterLabel(timeFormat, value string) (string, bool) {
	if timeFormat != "%q" {
		return "", false
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 12 {
		return "", false
	}
	q := (n + 2) / 3
	return "Q" + strconv.Itoa(q), true
}

func weekLabel(timeFormat, value string) (string, bool) {
	if timeFormat != "%W" && timeFormat != "%U" {
		return "", false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return "", false
	}
	return "W" + strconv.Itoa(n), true
}

// FindNodeByID is a defensive DFS over roots: a missing node is a value
// (nil, false), never a panic.
func FindNodeByID(tree *model.HeaderTree, id string) (*model.HeaderNode, bool) {
	for _, root := range tree.Roots {
		if n, ok := findNode(root, id); ok {
			return n, true
		}
	}
	return nil, false
}

func findNode(node *model.HeaderNode, id string) (*model.HeaderNode, bool) {
	if node.ID == id {
		return node, true
	}
	for _, c := range node.Children {
		if n, ok := findNode(c, id); ok {
			return n, true
		}
	}
	return nil, false
}

// ToggleCollapse flips node.Collapsed and recalculates the tree. Returns
// false (no-op) if nodeID does not exist in tree.
func ToggleCollapse(tree *model.HeaderTree, nodeID string) bool {
	node, ok := FindNodeByID(tree, nodeID)
	if !ok {
		return false
	}
	node.Collapsed = !node.Collapsed
	Recalculate(tree)
	return true
}

// FlattenTree emits nodes in traversal order, skipping the children of any
// collapsed node.
func FlattenTree(tree *model.HeaderTree) []*model.HeaderNode {
	out := make([]*model.HeaderNode, 0, tree.LeafCount)
	for _, root := range tree.Roots {
		flatten(root, &out)
	}
	return out
}

func flatten(node *model.HeaderNode, out *[]*model.HeaderNode) {
	*out = append(*out, node)
	if node.Collapsed {
		return
	}
	for _, c := range node.Children {
		flatten(c, out)
	}
}
