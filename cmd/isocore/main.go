// Package main is isocore, a thin host-collaborator CLI over the Isometry
// core: import files into the cards/card_properties store and run a pivot
// query against it. The UI chrome, native host, and API layer are external
// collaborators and are not implemented here; this binary only exercises
// the core's public operations end to end.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"isometry/internal/config"
	"isometry/internal/coordinator"
	"isometry/internal/importers"
	"isometry/internal/logging"
	"isometry/internal/model"
	"isometry/internal/pivot"
	"isometry/internal/query"
	"isometry/internal/store"
)

var (
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "isocore",
		Short: "Isometry core: canonicalize files into cards and run pivot queries",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return logging.Initialize(cfg.Logging.Level, cfg.Logging.JSONFormat)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "isocore.yaml", "path to config file")
	root.AddCommand(importCmd(), pivotCmd())
	return root
}

func newCoordinator() *coordinator.Coordinator {
	c := coordinator.New()
	c.Register([]string{".md", ".markdown", ".mdx"}, importers.NewMarkdownImporter("isocore"))
	c.Register([]string{".json"}, importers.NewJSONImporter("isocore"))
	c.Register([]string{".csv"}, importers.NewCSVImporter("isocore", ','))
	c.Register([]string{".tsv"}, importers.NewCSVImporter("isocore", '\t'))
	c.Register([]string{".html", ".htm"}, importers.NewHTMLImporter("isocore"))
	c.Register([]string{".xlsx", ".xls"}, importers.NewXLSXImporter("isocore"))
	c.Register([]string{".docx"}, importers.NewDOCXImporter("isocore"))
	return c
}

func importCmd() *cobra.Command {
	var transactional bool
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import files into the cards store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()

			c := newCoordinator()
			sources := make([]importers.FileSource, 0, len(args))
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
					continue
				}
				var modTime time.Time
				if info, err := os.Stat(path); err == nil {
					modTime = info.ModTime()
				}
				sources = append(sources, importers.FileSource{Filename: path, Content: content, ModTime: modTime})
			}

			result := c.ImportFiles(sources)
			writeResult, err := s.InsertCanonical(result.Records, store.InsertOptions{Transaction: transactional})
			if err != nil {
				return err
			}

			fmt.Printf("imported=%d skipped=%d inserted=%d failed=%d duration=%s\n",
				result.Imported, result.Skipped, writeResult.Inserted, writeResult.Failed, result.Duration)
			for _, fe := range result.Errors {
				fmt.Printf("  error: %s: %v\n", fe.File, fe.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&transactional, "transaction", true, "roll back the whole batch on any failure")
	return cmd
}

func pivotCmd() *cobra.Command {
	var rowFacetNames, colFacetNames []string
	cmd := &cobra.Command{
		Use:   "pivot",
		Short: "Build a pivot header tree over the cards store",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()

			runner := storeRunner{s: s}
			state := pivot.NewState(runner)

			if err := state.SetFacets(model.AxisRow, parseFacets(rowFacetNames)); err != nil {
				return err
			}
			if err := state.SetFacets(model.AxisColumn, parseFacets(colFacetNames)); err != nil {
				return err
			}

			printTree(state.RowTree, 0)
			printTree(state.ColTree, 0)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&rowFacetNames, "rows", []string{"folder"}, "row facet source columns")
	cmd.Flags().StringSliceVar(&colFacetNames, "cols", nil, "column facet source columns")
	return cmd
}

func parseFacets(columns []string) []model.Facet {
	facets := make([]model.Facet, 0, len(columns))
	for _, col := range columns {
		facets = append(facets, model.Facet{ID: col, Name: col, SourceColumn: col, DataType: model.DataSelect, SortOrder: model.SortAsc})
	}
	return facets
}

func printTree(tree *model.HeaderTree, indent int) {
	if tree == nil {
		return
	}
	fmt.Printf("%saxis=%s leafCount=%d\n", strings.Repeat("  ", indent), tree.Axis, tree.LeafCount)
	for _, root := range tree.Roots {
		printNode(root, indent+1)
	}
}

func printNode(n *model.HeaderNode, indent int) {
	fmt.Printf("%s%s (span=%d count=%d)\n", strings.Repeat("  ", indent), n.Label, n.Span, n.Aggregate.Count)
	for _, c := range n.Children {
		printNode(c, indent+1)
	}
}

// storeRunner adapts *store.Store to internal/pivot.Runner and
// internal/subscribe.Runner by executing a built query and scanning its
// rows into the duck-typed model.Row abstraction.
type storeRunner struct {
	s *store.Store
}

func (r storeRunner) Run(built query.Built) ([]model.Row, error) {
	rows, err := r.s.DB().Query(built.SQL, built.Params...)
	if err != nil {
		return nil, &model.StorageError{Op: "run pivot query", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &model.StorageError{Op: "read query columns", Err: err}
	}

	var out []model.Row
	for rows.Next() {
		scanned := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range scanned {
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &model.StorageError{Op: "scan pivot row", Err: err}
		}

		values := map[string]string{}
		var count int64
		for i, col := range cols {
			if col == "card_count" {
				count = toInt64(scanned[i])
				continue
			}
			facetID := strings.TrimPrefix(col, "facet_")
			values[facetID] = toString(scanned[i])
		}
		out = append(out, model.MapRow{Values: values, Count: count})
	}
	return out, rows.Err()
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}
