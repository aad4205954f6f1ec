// Package query implements the header-discovery query builder: it turns two
// ordered facet lists and a filter set into a single grouped-aggregation
// SQL statement plus its positional parameters, ready to hand to
// *sql.DB.Query.
package query

import (
	"strings"

	"isometry/internal/model"
)

// Filter is a single equality/range constraint applied to the WHERE clause.
// Op is one of "=", "!=", ">", ">=", "<", "<=", "like", "in".
type Filter struct {
	Column string
	Op     string
	Value  interface{}
}

// Options configures buildQuery's optional clauses.
type Options struct {
	// IncludeDeleted defaults to false, which appends deleted_at IS NULL.
	IncludeDeleted bool
	// Limit caps the result set when > 0.
	Limit int
	// CardTypes restricts to a closed set of card_type values when non-empty.
	CardTypes []string
}

// Built is the {sql, params} pair buildQuery produces.
type Built struct {
	SQL    string
	Params []interface{}
}

// BuildQuery projects rowFacets then colFacets (in that order), adds
// COUNT(*) AS card_count, applies filters/options, and groups + orders by
// every projected facet column in projection order. It is stable under an
// empty rowFacets or colFacets: the query simply groups on whichever axis
// is non-empty.
func BuildQuery(rowFacets, colFacets []model.Facet, filters []Filter, opts Options) (Built, error) {
	all := make([]model.Facet, 0, len(rowFacets)+len(colFacets))
	all = append(all, rowFacets...)
	all = append(all, colFacets...)

	for _, f := range all {
		if strings.TrimSpace(f.SourceColumn) == "" {
			return Built{}, &model.QueryShapeError{Detail: "facet " + f.ID + " has no sourceColumn"}
		}
	}

	projections := make([]string, 0, len(all))
	aliases := make([]string, 0, len(all))
	for _, f := range all {
		proj, alias := projectFacet(f)
		projections = append(projections, proj+" AS "+alias)
		aliases = append(aliases, alias)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(projections) > 0 {
		b.WriteString(strings.Join(projections, ", "))
		b.WriteString(", ")
	}
	b.WriteString("COUNT(*) AS card_count FROM cards")

	var params []interface{}
	whereClauses := []string{}

	if !opts.IncludeDeleted {
		whereClauses = append(whereClauses, "deleted_at IS NULL")
	}
	if len(opts.CardTypes) > 0 {
		placeholders := make([]string, len(opts.CardTypes))
		for i, ct := range opts.CardTypes {
			placeholders[i] = "?"
			params = append(params, ct)
		}
		whereClauses = append(whereClauses, "card_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	for _, f := range filters {
		clause, fparams, err := renderFilter(f)
		if err != nil {
			return Built{}, err
		}
		whereClauses = append(whereClauses, clause)
		params = append(params, fparams...)
	}

	if len(whereClauses) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(whereClauses, " AND "))
	}

	if len(aliases) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(aliases, ", "))
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(aliases, ", "))
	}

	if opts.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, opts.Limit)
	}

	return Built{SQL: b.String(), Params: params}, nil
}

// projectFacet returns the SELECT projection expression and its alias for a
// single facet: a plain column reference, or a strftime() wrap when the
// facet is date-typed and carries a TimeFormat.
func projectFacet(f model.Facet) (projection, alias string) {
	alias = facetAlias(f)
	if f.DataType == model.DataDate && f.TimeFormat != "" {
		return "strftime('" + sqlQuote(f.TimeFormat) + "', " + f.SourceColumn + ")", alias
	}
	return f.SourceColumn, alias
}

// facetAlias derives a safe SQL identifier from a facet id, since facet ids
// are not guaranteed to be bare column names (they may contain punctuation
// from importer-assigned facet configuration).
func facetAlias(f model.Facet) string {
	alias := "facet_" + sanitizeIdent(f.ID)
	if alias == "facet_" {
		alias = "facet_" + sanitizeIdent(f.SourceColumn)
	}
	return alias
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// sqlQuote escapes a single-quoted SQL string literal. strftime's format
// argument is a fixed facet-configuration value, never raw user input, but
// it is still quoted defensively rather than trusted verbatim.
func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func renderFilter(f Filter) (string, []interface{}, error) {
	col := sanitizeColumnRef(f.Column)
	switch strings.ToLower(f.Op) {
	case "=", "!=", ">", ">=", "<", "<=":
		return col + " " + f.Op + " ?", []interface{}{f.Value}, nil
	case "like":
		return col + " LIKE ?", []interface{}{f.Value}, nil
	case "in":
		values, ok := f.Value.([]interface{})
		if !ok {
			return "", nil, &model.QueryShapeError{Detail: "filter on " + f.Column + ": \"in\" requires a []interface{} value"}
		}
		if len(values) == 0 {
			return "0", nil, nil
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = "?"
		}
		return col + " IN (" + strings.Join(placeholders, ", ") + ")", values, nil
	default:
		return "", nil, &model.QueryShapeError{Detail: "unsupported filter operator: " + f.Op}
	}
}

// sanitizeColumnRef restricts a filter's column name to SQL identifier
// characters, since it is assembled directly into clause text rather than
// bound as a parameter (column names cannot be parameter-bound in SQL).
func sanitizeColumnRef(col string) string {
	return sanitizeIdent(col)
}
