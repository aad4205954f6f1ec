package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"isometry/internal/model"
)

func folderFacet() model.Facet {
	return model.Facet{ID: "folder", Name: "Folder", Axis: model.AxisCategory, SourceColumn: "folder", DataType: model.DataSelect, SortOrder: model.SortAsc}
}

func monthFacet() model.Facet {
	return model.Facet{ID: "month", Name: "Month", Axis: model.AxisTime, SourceColumn: "created_at", DataType: model.DataDate, TimeFormat: "%m", SortOrder: model.SortAsc}
}

func TestBuildQuery_BothAxesPresent(t *testing.T) {
	built, err := BuildQuery([]model.Facet{folderFacet()}, []model.Facet{monthFacet()}, nil, Options{})
	require.NoError(t, err)
	require.Contains(t, built.SQL, "SELECT folder AS facet_folder, strftime('%m', created_at) AS facet_month, COUNT(*) AS card_count")
	require.Contains(t, built.SQL, "WHERE deleted_at IS NULL")
	require.Contains(t, built.SQL, "GROUP BY facet_folder, facet_month")
	require.Contains(t, built.SQL, "ORDER BY facet_folder, facet_month")
}

func TestBuildQuery_EmptyColFacetsDegeneratesToRowsOnly(t *testing.T) {
	built, err := BuildQuery([]model.Facet{folderFacet()}, nil, nil, Options{})
	require.NoError(t, err)
	require.Contains(t, built.SQL, "GROUP BY facet_folder")
	require.NotContains(t, built.SQL, "facet_month")
}

func TestBuildQuery_BothEmptyStillCountsAll(t *testing.T) {
	built, err := BuildQuery(nil, nil, nil, Options{})
	require.NoError(t, err)
	require.NotContains(t, built.SQL, "GROUP BY")
	require.Contains(t, built.SQL, "SELECT COUNT(*) AS card_count FROM cards")
}

func TestBuildQuery_IncludeDeletedOmitsFilter(t *testing.T) {
	built, err := BuildQuery([]model.Facet{folderFacet()}, nil, nil, Options{IncludeDeleted: true})
	require.NoError(t, err)
	require.NotContains(t, built.SQL, "deleted_at IS NULL")
}

func TestBuildQuery_CardTypesAndLimitBindPositionally(t *testing.T) {
	built, err := BuildQuery([]model.Facet{folderFacet()}, nil, nil, Options{CardTypes: []string{"note", "event"}, Limit: 10})
	require.NoError(t, err)
	require.Contains(t, built.SQL, "card_type IN (?, ?)")
	require.Contains(t, built.SQL, "LIMIT ?")
	require.Equal(t, []interface{}{"note", "event", 10}, built.Params)
}

func TestBuildQuery_FiltersBindPositionallyNoInterpolation(t *testing.T) {
	built, err := BuildQuery(nil, nil, []Filter{
		{Column: "priority", Op: ">=", Value: 3},
		{Column: "status", Op: "=", Value: "active"},
	}, Options{})
	require.NoError(t, err)
	require.Contains(t, built.SQL, "priority >= ?")
	require.Contains(t, built.SQL, "status = ?")
	require.Equal(t, []interface{}{3, "active"}, built.Params)
	require.NotContains(t, built.SQL, "active")
}

func TestBuildQuery_MissingFacetSourceColumnFails(t *testing.T) {
	_, err := BuildQuery([]model.Facet{{ID: "bad"}}, nil, nil, Options{})
	require.Error(t, err)
	var shapeErr *model.QueryShapeError
	require.ErrorAs(t, err, &shapeErr)
}

func TestBuildQuery_UnsupportedFilterOperatorFails(t *testing.T) {
	_, err := BuildQuery(nil, nil, []Filter{{Column: "status", Op: "~=", Value: "x"}}, Options{})
	require.Error(t, err)
}
