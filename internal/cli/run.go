package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a stored merge job once",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openMetaStore()
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := svc.RunJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if result.RowsInserted == 0 {
		fmt.Println("Local database already contains all records.")
	} else {
		fmt.Printf("Imported %d new row(s) (%d scanned).\n", result.RowsInserted, result.RowsScanned)
	}
	return nil
}
