// Package main provides the editorstore CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/barocss/editor-core/pkg/document"
	"github.com/barocss/editor-core/pkg/schema"
	"github.com/barocss/editor-core/pkg/snapshot"
	"github.com/barocss/editor-core/pkg/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "editorstore",
		Short: "editorstore - schema-validated transactional document store",
		Long: `editorstore inspects, validates, and persists editor document
snapshots built on the editor-core DataStore.

Documents are JSON arrays of node records; schemas are YAML definitions
of node/mark types and content expressions.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("editorstore v%s (%s)\n", version, commit)
		},
	})

	validateCmd := &cobra.Command{
		Use:   "validate [document.json]",
		Short: "Validate a document against a schema and the store invariants",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	validateCmd.Flags().String("schema", "", "Schema definition file (YAML)")
	rootCmd.AddCommand(validateCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect [document.json]",
		Short: "Print the document tree and mark statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	inspectCmd.Flags().String("schema", "", "Schema definition file (YAML)")
	rootCmd.AddCommand(inspectCmd)

	importCmd := &cobra.Command{
		Use:   "import [document.json]",
		Short: "Store a document snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	importCmd.Flags().String("data-dir", "./data", "Snapshot data directory")
	importCmd.Flags().String("doc", "", "Document id (default: file name without a .json extension)")
	rootCmd.AddCommand(importCmd)

	exportCmd := &cobra.Command{
		Use:   "export [doc-id]",
		Short: "Print a stored document snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().String("data-dir", "./data", "Snapshot data directory")
	rootCmd.AddCommand(exportCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored document snapshots",
		RunE:  runList,
	}
	listCmd.Flags().String("data-dir", "./data", "Snapshot data directory")
	rootCmd.AddCommand(listCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadDocument reads a node array and seeds a fresh store without
// emitting ops.
func loadDocument(path string, sch *schema.Schema) (*store.DataStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var nodes []*document.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	ds := store.New(sch)
	for _, n := range nodes {
		if _, err := ds.SetNode(n, false); err != nil {
			return nil, fmt.Errorf("seed %s: %w", n.SID, err)
		}
	}
	return ds, nil
}

func loadSchemaFlag(cmd *cobra.Command) (*schema.Schema, error) {
	path, _ := cmd.Flags().GetString("schema")
	if path == "" {
		return nil, nil
	}
	return schema.Load(path)
}

func runValidate(cmd *cobra.Command, args []string) error {
	sch, err := loadSchemaFlag(cmd)
	if err != nil {
		return err
	}
	ds, err := loadDocument(args[0], sch)
	if err != nil {
		return err
	}
	res := ds.ValidateDocument()
	if res.Valid {
		fmt.Printf("OK: %d nodes\n", ds.NodeCount())
		return nil
	}
	for _, reason := range res.Errors {
		fmt.Println("FAIL:", reason)
	}
	return fmt.Errorf("%d violations", len(res.Errors))
}

func runInspect(cmd *cobra.Command, args []string) error {
	sch, err := loadSchemaFlag(cmd)
	if err != nil {
		return err
	}
	ds, err := loadDocument(args[0], sch)
	if err != nil {
		return err
	}

	root := ds.GetRootNode()
	if root == nil {
		fmt.Println("(no root node)")
	} else {
		printTree(ds, root, 0)
	}

	// Mark statistics over every text node, worst offenders first.
	type nodeStats struct {
		id    document.NodeID
		stats *store.MarkStatistics
	}
	var all []nodeStats
	for _, n := range ds.GetAllNodes() {
		if !n.HasText() || len(n.Marks) == 0 {
			continue
		}
		st, err := ds.GetMarkStatistics(n.SID)
		if err != nil {
			continue
		}
		all = append(all, nodeStats{id: n.SID, stats: st})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].stats.OverlappingMarks+all[i].stats.EmptyMarks >
			all[j].stats.OverlappingMarks+all[j].stats.EmptyMarks
	})
	if len(all) > 0 {
		fmt.Println("\nmarks:")
		for _, ns := range all {
			fmt.Printf("  %s: %d total, %d overlapping, %d empty\n",
				ns.id, ns.stats.TotalMarks, ns.stats.OverlappingMarks, ns.stats.EmptyMarks)
		}
	}
	return nil
}

func printTree(ds *store.DataStore, n *document.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.HasText() {
		fmt.Printf("%s%s %s %q\n", indent, n.SID, n.SType, n.TextString())
	} else {
		fmt.Printf("%s%s %s\n", indent, n.SID, n.SType)
	}
	for _, cid := range n.Content {
		child, err := ds.GetNode(cid)
		if err != nil {
			continue
		}
		printTree(ds, child, depth+1)
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	dataDir, _ := cmd.Flags().GetString("data-dir")
	docID, _ := cmd.Flags().GetString("doc")
	if docID == "" {
		base := args[0]
		if i := strings.LastIndexByte(base, '/'); i >= 0 {
			base = base[i+1:]
		}
		docID = strings.TrimSuffix(base, ".json")
	}

	ds, err := loadDocument(args[0], nil)
	if err != nil {
		return err
	}
	st, err := snapshot.Open(dataDir, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Save(docID, ds.GetAllNodes()); err != nil {
		return err
	}
	fmt.Printf("imported %q (%d nodes)\n", docID, ds.NodeCount())
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	dataDir, _ := cmd.Flags().GetString("data-dir")
	st, err := snapshot.Open(dataDir, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	nodes, err := st.Load(args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	dataDir, _ := cmd.Flags().GetString("data-dir")
	st, err := snapshot.Open(dataDir, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ids, err := st.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
