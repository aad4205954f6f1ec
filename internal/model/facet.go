package model

// Axis is the LATCH axis a Facet belongs to.
type Axis string

const (
	AxisLocation  Axis = "L"
	AxisAlphabet  Axis = "A"
	AxisTime      Axis = "T"
	AxisCategory  Axis = "C"
	AxisHierarchy Axis = "H"
)

// DataType governs sort/label treatment of a facet's grouped values.
type DataType string

const (
	DataText        DataType = "text"
	DataNumber      DataType = "number"
	DataDate        DataType = "date"
	DataSelect      DataType = "select"
	DataMultiSelect DataType = "multi_select"
)

// SortOrder selects how sibling header nodes at a facet's level are ordered.
type SortOrder string

const (
	SortAsc    SortOrder = "asc"
	SortDesc   SortOrder = "desc"
	SortCustom SortOrder = "custom"
)

// Facet names exactly one storage column (or a strftime projection of one)
// and dictates how the header tree builder sorts and labels its level.
type Facet struct {
	ID           string
	Name         string
	Axis         Axis
	SourceColumn string
	DataType     DataType
	TimeFormat   string   // strftime format, only meaningful when DataType == DataDate
	Options      []string // ordered values for SortCustom; unknown values sort last
	SortOrder    SortOrder
}
