package pivot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"isometry/internal/model"
)

// nodeShape is an acyclic projection of model.HeaderNode for cmp.Diff;
// HeaderNode.Parent is a back-reference cmp can't traverse without looping.
type nodeShape struct {
	Value      string
	Span       int
	StartIndex int
	Count      int64
	Children   []nodeShape
}

func shapeOf(n *model.HeaderNode) nodeShape {
	s := nodeShape{Value: n.Value, Span: n.Span, StartIndex: n.StartIndex, Count: n.Aggregate.Count}
	for _, c := range n.Children {
		s.Children = append(s.Children, shapeOf(c))
	}
	return s
}

// folderFacet sorts descending so that Work precedes Home, the root order
// the scenario tests below expect.
func folderFacet() model.Facet {
	return model.Facet{ID: "folder", Name: "Folder", SourceColumn: "folder", DataType: model.DataSelect, SortOrder: model.SortDesc}
}

func tagsFacet() model.Facet {
	return model.Facet{ID: "tags", Name: "Tags", SourceColumn: "tags", DataType: model.DataSelect, SortOrder: model.SortAsc}
}

// rows [(Work,Meetings,3),(Work,Notes,5),(Home,Notes,2)]
func scenarioRows() []model.Row {
	return []model.Row{
		model.MapRow{Values: map[string]string{"folder": "Work", "tags": "Meetings"}, Count: 3},
		model.MapRow{Values: map[string]string{"folder": "Work", "tags": "Notes"}, Count: 5},
		model.MapRow{Values: map[string]string{"folder": "Home", "tags": "Notes"}, Count: 2},
	}
}

func TestBuild_SpanAndAggregateScenario(t *testing.T) {
	tree := Build(scenarioRows(), []model.Facet{folderFacet(), tagsFacet()}, model.AxisRow)

	require.Len(t, tree.Roots, 2)
	work, home := tree.Roots[0], tree.Roots[1]
	require.Equal(t, "Work", work.Value)
	require.Equal(t, "Home", home.Value)

	require.Equal(t, 2, work.Span)
	require.Equal(t, 1, home.Span)
	require.EqualValues(t, 8, work.Aggregate.Count)
	require.EqualValues(t, 2, home.Aggregate.Count)

	require.Len(t, work.Children, 2)
	require.Equal(t, "Meetings", work.Children[0].Value)
	require.Equal(t, 0, work.Children[0].StartIndex)
	require.Equal(t, "Notes", work.Children[1].Value)
	require.Equal(t, 1, work.Children[1].StartIndex)

	require.Len(t, home.Children, 1)
	require.Equal(t, 2, home.Children[0].StartIndex)

	require.Equal(t, 3, tree.LeafCount)
}

func TestBuild_FullTreeShapeMatchesScenario(t *testing.T) {
	tree := Build(scenarioRows(), []model.Facet{folderFacet(), tagsFacet()}, model.AxisRow)

	var got []nodeShape
	for _, r := range tree.Roots {
		got = append(got, shapeOf(r))
	}
	want := []nodeShape{
		{Value: "Work", Span: 2, StartIndex: 0, Count: 8, Children: []nodeShape{
			{Value: "Meetings", Span: 1, StartIndex: 0, Count: 3},
			{Value: "Notes", Span: 1, StartIndex: 1, Count: 5},
		}},
		{Value: "Home", Span: 1, StartIndex: 2, Count: 2, Children: []nodeShape{
			{Value: "Notes", Span: 1, StartIndex: 2, Count: 2},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tree shape mismatch (-want +got):\n%s", diff)
	}
}

func TestToggleCollapse_ScenarioAndRoundTrip(t *testing.T) {
	tree := Build(scenarioRows(), []model.Facet{folderFacet(), tagsFacet()}, model.AxisRow)
	work := tree.Roots[0]
	home := tree.Roots[1]

	ok := ToggleCollapse(tree, work.ID)
	require.True(t, ok)
	require.Equal(t, 1, work.Span)
	require.Equal(t, 0, work.StartIndex)
	require.Equal(t, 1, home.StartIndex)
	require.Equal(t, 2, tree.LeafCount)

	ok = ToggleCollapse(tree, work.ID)
	require.True(t, ok)
	require.Equal(t, 2, work.Span)
	require.Equal(t, 0, work.StartIndex)
	require.Equal(t, 2, home.StartIndex)
	require.Equal(t, 3, tree.LeafCount)
}

func TestToggleCollapse_MissingNodeIsNotAnError(t *testing.T) {
	tree := Build(scenarioRows(), []model.Facet{folderFacet()}, model.AxisRow)
	require.False(t, ToggleCollapse(tree, "does-not-exist"))
}

func TestRootSpanSumEqualsLeafCount(t *testing.T) {
	tree := Build(scenarioRows(), []model.Facet{folderFacet(), tagsFacet()}, model.AxisRow)
	sum := 0
	for _, r := range tree.Roots {
		sum += r.Span
	}
	require.Equal(t, tree.LeafCount, sum)
}

func TestBuild_EmptyFacetsProducesEmptyTree(t *testing.T) {
	tree := Build(scenarioRows(), nil, model.AxisColumn)
	require.Empty(t, tree.Roots)
	require.Equal(t, 0, tree.LeafCount)
}

func TestFormatLabel_MonthQuarterWeek(t *testing.T) {
	month := model.Facet{ID: "m", SourceColumn: "created_at", DataType: model.DataDate, TimeFormat: "%m"}
	require.Equal(t, "Jan", formatLabel(month, "01"))
	require.Equal(t, "Dec", formatLabel(month, "12"))

	quarter := model.Facet{ID: "q", SourceColumn: "created_at", DataType: model.DataDate, TimeFormat: "%q"}
	require.Equal(t, "Q1", formatLabel(quarter, "02"))
	require.Equal(t, "Q4", formatLabel(quarter, "11"))

	week := model.Facet{ID: "w", SourceColumn: "created_at", DataType: model.DataDate, TimeFormat: "%W"}
	require.Equal(t, "W5", formatLabel(week, "5"))

	plain := model.Facet{ID: "p", SourceColumn: "folder", DataType: model.DataSelect}
	require.Equal(t, "Anything", formatLabel(plain, "Anything"))
}

func TestSortNodes_CustomOrderUnknownsLast(t *testing.T) {
	f := model.Facet{ID: "status", SourceColumn: "status", SortOrder: model.SortCustom, Options: []string{"todo", "doing", "done"}}
	rows := []model.Row{
		model.MapRow{Values: map[string]string{"status": "done"}, Count: 1},
		model.MapRow{Values: map[string]string{"status": "todo"}, Count: 1},
		model.MapRow{Values: map[string]string{"status": "mystery"}, Count: 1},
		model.MapRow{Values: map[string]string{"status": "doing"}, Count: 1},
	}
	tree := Build(rows, []model.Facet{f}, model.AxisRow)
	var order []string
	for _, r := range tree.Roots {
		order = append(order, r.Value)
	}
	require.Equal(t, []string{"todo", "doing", "done", "mystery"}, order)
}

func TestFlattenTree_SkipsCollapsedChildren(t *testing.T) {
	tree := Build(scenarioRows(), []model.Facet{folderFacet(), tagsFacet()}, model.AxisRow)
	ToggleCollapse(tree, tree.Roots[0].ID)
	flat := FlattenTree(tree)
	// Work (collapsed, no children emitted), Home, Home's one child.
	require.Len(t, flat, 3)
}
