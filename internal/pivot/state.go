package pivot

import (
	"isometry/internal/logging"
	"isometry/internal/model"
	"isometry/internal/query"
)

// Dimensions controls pivot grid layout.
type Dimensions struct {
	RowHeaderLevelWidth  int
	ColHeaderLevelHeight int
	CellMinWidth         int
	CellMinHeight        int
	Zoom                 float64
}

// DefaultDimensions returns the standard defaults: 120, 28, 80, 28, 1.0.
func DefaultDimensions() Dimensions {
	return Dimensions{RowHeaderLevelWidth: 120, ColHeaderLevelHeight: 28, CellMinWidth: 80, CellMinHeight: 28, Zoom: 1.0}
}

// Runner is the minimal query-execution dependency the state controller
// needs: run a built query against the live store and return duck-typed
// rows. cmd/isocore's storeRunner implements it over internal/store.
type Runner interface {
	Run(built query.Built) ([]model.Row, error)
}

// LayoutObserver receives the layout-change event SetDimensions emits after
// merging a patch, mirroring internal/subscribe's Observer pattern.
type LayoutObserver interface {
	OnLayoutChange(Dimensions)
}

// State owns the current facet selection, the two built trees, collapse
// set, selection, and dimensions for one pivot view. A State must not be
// shared across goroutines.
type State struct {
	RowFacets []model.Facet
	ColFacets []model.Facet

	RowTree *model.HeaderTree
	ColTree *model.HeaderTree

	SelectedID string
	Dimensions Dimensions

	runner    Runner
	options   query.Options
	filters   []query.Filter
	layoutObs LayoutObserver
}

// NewState constructs a controller bound to a query Runner, with empty
// facet lists and default dimensions.
func NewState(runner Runner) *State {
	return &State{runner: runner, Dimensions: DefaultDimensions()}
}

// SetLayoutObserver registers the callback SetDimensions notifies after
// merging a patch. Pass nil to stop receiving layout-change events.
func (s *State) SetLayoutObserver(obs LayoutObserver) { s.layoutObs = obs }

// SetFilters replaces the filter set applied to every subsequent query.
func (s *State) SetFilters(filters []query.Filter) { s.filters = filters }

// SetOptions replaces the query Options (includeDeleted/limit/cardTypes)
// applied to every subsequent query.
func (s *State) SetOptions(opts query.Options) { s.options = opts }

// SetFacets replaces an axis's facet list and triggers a fresh query + tree
// build for both axes. Trees are replaced atomically: on
// query failure, the prior trees remain in place and the error is returned.
func (s *State) SetFacets(axis model.HeaderAxis, facets []model.Facet) error {
	switch axis {
	case model.AxisRow:
		s.RowFacets = facets
	case model.AxisColumn:
		s.ColFacets = facets
	}
	return s.rebuild()
}

func (s *State) rebuild() error {
	built, err := query.BuildQuery(s.RowFacets, s.ColFacets, s.filters, s.options)
	if err != nil {
		return err
	}

	rows, err := s.runner.Run(built)
	if err != nil {
		return err
	}

	rowTree := Build(rows, s.RowFacets, model.AxisRow)
	colTree := Build(rows, s.ColFacets, model.AxisColumn)

	// Atomic swap: both trees or neither become visible.
	s.RowTree = rowTree
	s.ColTree = colTree

	logging.Pivot("rebuilt trees: rowLeaves=%d colLeaves=%d", rowTree.LeafCount, colTree.LeafCount)
	return nil
}

// ToggleCollapse mutates whichever tree contains nodeID in place and
// recalculates it. Returns false if nodeID is not found in either tree.
func (s *State) ToggleCollapse(nodeID string) bool {
	if s.RowTree != nil && ToggleCollapse(s.RowTree, nodeID) {
		return true
	}
	if s.ColTree != nil && ToggleCollapse(s.ColTree, nodeID) {
		return true
	}
	return false
}

// SetSelected is purely state: it does not touch the trees.
// Pass "" to clear the selection.
func (s *State) SetSelected(nodeID string) {
	s.SelectedID = nodeID
}

// DimensionsPatch carries a partial update for SetDimensions; nil fields
// are left unchanged.
type DimensionsPatch struct {
	RowHeaderLevelWidth  *int
	ColHeaderLevelHeight *int
	CellMinWidth         *int
	CellMinHeight        *int
	Zoom                 *float64
}

// SetDimensions merges patch into the current Dimensions, then emits a
// layout-change event to the registered LayoutObserver, if any.
func (s *State) SetDimensions(patch DimensionsPatch) {
	if patch.RowHeaderLevelWidth != nil {
		s.Dimensions.RowHeaderLevelWidth = *patch.RowHeaderLevelWidth
	}
	if patch.ColHeaderLevelHeight != nil {
		s.Dimensions.ColHeaderLevelHeight = *patch.ColHeaderLevelHeight
	}
	if patch.CellMinWidth != nil {
		s.Dimensions.CellMinWidth = *patch.CellMinWidth
	}
	if patch.CellMinHeight != nil {
		s.Dimensions.CellMinHeight = *patch.CellMinHeight
	}
	if patch.Zoom != nil {
		s.Dimensions.Zoom = *patch.Zoom
	}
	if s.layoutObs != nil {
		s.layoutObs.OnLayoutChange(s.Dimensions)
	}
}
