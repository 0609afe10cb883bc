package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"raceform/internal/merge"
	"raceform/internal/relation"
	"raceform/internal/service"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage stored merge jobs",
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Store a re-runnable merge job",
	Long: `Store a merge job so it can be re-run by ID, on a cron schedule, or
whenever the source snapshot file changes.

Trigger types:
  manual      run only via 'raceform run <job-id>' (default)
  schedule    --trigger-config holds a cron expression, e.g. "0 6 * * *"
  file_watch  --trigger-config holds the snapshot path to watch`,
	RunE: runJobsAdd,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored merge jobs",
	RunE:  runJobsList,
}

var jobsRemoveCmd = &cobra.Command{
	Use:   "rm <job-id>",
	Short: "Delete a stored merge job and its run logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRemove,
}

var jobsEnableCmd = &cobra.Command{
	Use:   "enable <job-id>",
	Short: "Enable or disable a stored merge job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsEnable,
}

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job-id>",
	Short: "Show recent run logs for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsLogs,
}

var (
	jobName          string
	jobSource        string
	jobDest          string
	jobTable         string
	jobTriggerType   string
	jobTriggerConfig string
	jobDisabled      bool
)

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsAddCmd, jobsListCmd, jobsRemoveCmd, jobsEnableCmd, jobsLogsCmd)

	jobsAddCmd.Flags().StringVar(&jobName, "name", "", "Job name")
	jobsAddCmd.Flags().StringVar(&jobSource, "source", "", "Source snapshot path (or DSN)")
	jobsAddCmd.Flags().StringVar(&jobDest, "dest", "", "Destination database path (or DSN)")
	jobsAddCmd.Flags().StringVar(&jobTable, "table", merge.DefaultTable, "Table name")
	jobsAddCmd.Flags().StringVar(&jobTriggerType, "trigger", merge.TriggerManual, "Trigger type (manual, schedule, file_watch)")
	jobsAddCmd.Flags().StringVar(&jobTriggerConfig, "trigger-config", "", "Cron expression or watch path")
	jobsAddCmd.MarkFlagRequired("name")
	jobsAddCmd.MarkFlagRequired("source")
	jobsAddCmd.MarkFlagRequired("dest")

	jobsEnableCmd.Flags().BoolVar(&jobDisabled, "off", false, "Disable instead of enable")
}

func runJobsAdd(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openMetaStore()
	if err != nil {
		return err
	}
	defer closeFn()

	job, err := svc.CreateJob(cmd.Context(), service.CreateJobInput{
		Name: jobName,
		Config: merge.Config{
			Source:      relation.Config{DSN: jobSource, Table: jobTable},
			Destination: relation.Config{DSN: jobDest, Table: jobTable},
		},
		TriggerType:   jobTriggerType,
		TriggerConfig: jobTriggerConfig,
		Enabled:       true,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created job %s (%s)\n", job.ID, job.Name)
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openMetaStore()
	if err != nil {
		return err
	}
	defer closeFn()

	jobs, err := svc.ListJobs()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No merge jobs stored.")
		return nil
	}

	for _, j := range jobs {
		state := "enabled"
		if !j.Enabled {
			state = "disabled"
		}
		status := j.LastStatus
		if status == "" {
			status = "never run"
		}
		fmt.Printf("%s  %-20s %s -> %s  [%s/%s]  last: %s\n",
			j.ID, j.Name, j.Config.Source.DSN, j.Config.Destination.DSN,
			j.TriggerType, state, status)
	}
	return nil
}

func runJobsRemove(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openMetaStore()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := svc.DeleteJob(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted job %s\n", args[0])
	return nil
}

func runJobsEnable(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openMetaStore()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := svc.SetJobEnabled(cmd.Context(), args[0], !jobDisabled); err != nil {
		return err
	}
	if jobDisabled {
		fmt.Printf("Disabled job %s\n", args[0])
	} else {
		fmt.Printf("Enabled job %s\n", args[0])
	}
	return nil
}

func runJobsLogs(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openMetaStore()
	if err != nil {
		return err
	}
	defer closeFn()

	logs, err := svc.ListRunLogs(args[0])
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, l := range logs {
		line := fmt.Sprintf("%s  %-7s scanned=%d inserted=%d",
			l.StartedAt.Format("2006-01-02 15:04:05"), l.Status, l.RowsScanned, l.RowsInserted)
		if l.Error != "" {
			line += "  " + l.Error
		}
		fmt.Println(line)
	}
	return nil
}
