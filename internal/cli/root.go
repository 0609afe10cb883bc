package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"raceform/internal/service"
	"raceform/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "raceform",
	Short: "Merge racing form database snapshots",
	Long: `raceform keeps a local racing form database up to date from downloaded
reference snapshots. The core operation is a non-destructive merge: every
source row whose (race_id, horse) combination is missing from the local
database is appended; existing rows are never touched.`,
	SilenceUsage: true,
}

var metaDBPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&metaDBPath, "meta-db", "",
		"Path to the job metadata database (default ~/.local/share/raceform/meta.db)")
}

// Execute runs the CLI. Errors have already been printed by cobra.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openMetaStore opens the metadata database and returns the job store plus a
// MergeService wired to it. The returned close function must run on all exit
// paths.
func openMetaStore() (*service.MergeService, func(), error) {
	path := metaDBPath
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(homeDir, ".local", "share", "raceform", "meta.db")
	}

	db, err := storage.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open metadata db: %w", err)
	}

	svc := service.NewMergeService(storage.NewJobStore(db))
	closeFn := func() {
		svc.Stop()
		db.Close()
	}
	return svc, closeFn, nil
}
