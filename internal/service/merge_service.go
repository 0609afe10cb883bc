package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"raceform/internal/merge"
	"raceform/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// MergeService — business logic for stored merge jobs
// ─────────────────────────────────────────────────────────────

// MergeService manages merge jobs, scheduling, and snapshot file watching.
type MergeService struct {
	store         *storage.JobStore
	runningMerges runningMergesGuard

	// watcher / cron lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewMergeService creates a MergeService ready for use.
func NewMergeService(store *storage.JobStore) *MergeService {
	return &MergeService{store: store}
}

// ── Job CRUD ───────────────────────────────────────────────

// CreateJobInput carries the fields needed to store a new merge job.
type CreateJobInput struct {
	Name          string       `json:"name"`
	Config        merge.Config `json:"config"`
	TriggerType   string       `json:"triggerType"`
	TriggerConfig string       `json:"triggerConfig"`
	Enabled       bool         `json:"enabled"`
}

func (s *MergeService) CreateJob(ctx context.Context, input CreateJobInput) (*merge.Job, error) {
	if input.Config.Source.DSN == "" || input.Config.Destination.DSN == "" {
		return nil, fmt.Errorf("source and destination are required")
	}

	job := &merge.Job{
		Name:          input.Name,
		Config:        input.Config,
		TriggerType:   input.TriggerType,
		TriggerConfig: input.TriggerConfig,
		Enabled:       input.Enabled,
	}
	if job.TriggerType == "" {
		job.TriggerType = merge.TriggerManual
	}

	if err := s.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create merge job: %w", err)
	}
	s.RestartWatchers(ctx)
	return job, nil
}

func (s *MergeService) GetJob(id string) (*merge.Job, error) {
	return s.store.GetJob(id)
}

func (s *MergeService) ListJobs() ([]merge.Job, error) {
	return s.store.ListJobs()
}

func (s *MergeService) SetJobEnabled(ctx context.Context, id string, enabled bool) error {
	job, err := s.store.GetJob(id)
	if err != nil {
		return err
	}
	job.Enabled = enabled
	if err := s.store.UpdateJob(job); err != nil {
		return err
	}
	s.RestartWatchers(ctx)
	return nil
}

func (s *MergeService) DeleteJob(ctx context.Context, id string) error {
	err := s.store.DeleteJob(id)
	if err == nil {
		s.RestartWatchers(ctx)
	}
	return err
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes a stored merge job synchronously, recording a run log and
// updating the job's last-run status.
func (s *MergeService) RunJob(ctx context.Context, id string) (*merge.Result, error) {
	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}

	// One merge per destination at a time.
	dest := job.Config.Destination.DSN
	if !s.runningMerges.TryLock(dest) {
		return nil, fmt.Errorf("a merge into %s is already running", dest)
	}
	defer s.runningMerges.Unlock(dest)

	s.store.UpdateJobStatus(id, "running", "")

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	result, runErr := merge.New(job.Config).Run(runCtx)

	runLog := &merge.RunLog{
		JobID:      id,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Status:     "success",
	}
	if result != nil {
		runLog.RowsScanned = result.RowsScanned
		runLog.RowsInserted = result.RowsInserted
	}
	if runErr != nil {
		runLog.Status = "error"
		runLog.Error = runErr.Error()
	}
	s.store.CreateRunLog(runLog)
	s.store.UpdateJobStatus(id, runLog.Status, runLog.Error)

	return result, runErr
}

// RunAdHoc executes a merge that isn't stored as a job, still honouring the
// per-destination exclusion.
func (s *MergeService) RunAdHoc(ctx context.Context, cfg merge.Config) (*merge.Result, error) {
	dest := cfg.Destination.DSN
	if !s.runningMerges.TryLock(dest) {
		return nil, fmt.Errorf("a merge into %s is already running", dest)
	}
	defer s.runningMerges.Unlock(dest)

	return merge.New(cfg).Run(ctx)
}

// ListRunLogs returns the last 50 run logs for a job.
func (s *MergeService) ListRunLogs(jobID string) ([]merge.RunLog, error) {
	return s.store.ListRunLogs(jobID, 50)
}

// ── Watchers (cron + file_watch) ──────────────────────────

// RestartWatchers tears down the current watcher/cron and rebuilds them from scratch.
func (s *MergeService) RestartWatchers(ctx context.Context) {
	s.stopWatchers()

	jobs, err := s.store.ListEnabledScheduledJobs()
	if err != nil {
		log.Printf("watch: failed to list jobs: %v", err)
		return
	}

	// ── Cron jobs ──
	var scheduled []merge.Job
	for _, j := range jobs {
		if j.TriggerType == merge.TriggerSchedule && j.TriggerConfig != "" {
			scheduled = append(scheduled, j)
		}
	}

	if len(scheduled) > 0 {
		c := cron.New()
		for _, j := range scheduled {
			jid := j.ID
			_, err := c.AddFunc(j.TriggerConfig, func() {
				log.Printf("watch: cron run for job %s", jid)
				if _, err := s.RunJob(ctx, jid); err != nil {
					log.Printf("watch: cron job %s failed: %v", jid, err)
				}
			})
			if err != nil {
				log.Printf("watch: invalid cron expression %q for job %s: %v", j.TriggerConfig, j.ID, err)
			}
		}
		c.Start()
		s.cronSched = c
		log.Printf("watch: scheduled %d job(s)", len(scheduled))
	}

	// ── File watchers ──
	// A file_watch job re-merges whenever a fresh snapshot replaces the
	// watched file (e.g. a new Kaggle download).
	type watchEntry struct {
		jobID string
		path  string
	}
	var entries []watchEntry
	for _, j := range jobs {
		if j.TriggerType == merge.TriggerFileWatch && j.TriggerConfig != "" {
			entries = append(entries, watchEntry{jobID: j.ID, path: j.TriggerConfig})
		}
	}

	if len(entries) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("watch: failed to create watcher: %v", err)
		return
	}
	s.watcher = watcher

	pathToJob := make(map[string]string)
	watchedDirs := make(map[string]bool)
	for _, e := range entries {
		absPath, err := filepath.Abs(e.path)
		if err != nil {
			log.Printf("watch: bad path %q: %v", e.path, err)
			continue
		}
		pathToJob[absPath] = e.jobID

		// Watch the containing directory: snapshot downloads usually land
		// as a rename/replace, which a file-level watch would lose.
		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				log.Printf("watch: failed to watch dir %q: %v", dir, err)
			} else {
				watchedDirs[dir] = true
			}
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		timers := make(map[string]*time.Timer)
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				jobID, ok := pathToJob[absPath]
				if !ok {
					continue
				}
				// Debounce: downloads arrive as bursts of writes.
				if t, exists := timers[jobID]; exists {
					t.Stop()
				}
				jid := jobID
				timers[jobID] = time.AfterFunc(500*time.Millisecond, func() {
					log.Printf("watch: snapshot changed %q, running job %s", absPath, jid)
					if _, err := s.RunJob(ctx, jid); err != nil {
						log.Printf("watch: run failed for job %s: %v", jid, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("watch: error: %v", err)
			}
		}
	}()

	log.Printf("watch: watching %d snapshot file(s)", len(pathToJob))
}

// WaitRunning blocks until all running merges finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *MergeService) WaitRunning(ctx context.Context) {
	s.runningMerges.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *MergeService) Stop() {
	s.stopWatchers()
}

func (s *MergeService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
