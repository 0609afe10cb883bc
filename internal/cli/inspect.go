package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"raceform/internal/merge"
	"raceform/internal/relation"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the schema and row count of a snapshot table",
	RunE:  runInspect,
}

var (
	inspectDB     string
	inspectTable  string
	inspectDriver string
)

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "Database path (or DSN)")
	inspectCmd.Flags().StringVar(&inspectTable, "table", merge.DefaultTable, "Table name")
	inspectCmd.Flags().StringVar(&inspectDriver, "driver", "sqlite", "Database driver (sqlite, mysql, postgres)")

	inspectCmd.MarkFlagRequired("db")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rel, err := relation.Open(ctx, relation.Config{
		Driver: inspectDriver, DSN: inspectDB, Table: inspectTable,
	})
	if err != nil {
		return err
	}
	defer rel.Close()

	cols, err := rel.Columns(ctx)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("table %s not found in %s", inspectTable, inspectDB)
	}
	count, err := rel.RowCount(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s.%s\n", inspectDB, inspectTable)
	fmt.Printf("  columns: %s\n", strings.Join(cols, ", "))
	fmt.Printf("  rows:    %d\n", count)
	return nil
}
