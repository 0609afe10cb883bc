package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run scheduled and file-watch merge jobs until interrupted",
	Long: `Start the watcher daemon. Every enabled job with a schedule trigger runs
on its cron expression; every job with a file_watch trigger runs when its
snapshot file is rewritten (e.g. a new download lands). Stops cleanly on
SIGINT/SIGTERM, waiting for in-flight merges to finish.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openMetaStore()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc.RestartWatchers(ctx)
	log.Println("watch: running, press Ctrl-C to stop")

	<-ctx.Done()

	log.Println("watch: shutting down, waiting for running merges")
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer waitCancel()
	svc.WaitRunning(waitCtx)
	return nil
}
