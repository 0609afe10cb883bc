package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"raceform/internal/merge"
)

// JobStore implements persistence for merge jobs and run logs.
type JobStore struct {
	db *DB
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// ── Job CRUD ───────────────────────────────────────────────

func (s *JobStore) CreateJob(job *merge.Job) error {
	now := time.Now()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now

	cfg, _ := json.Marshal(job.Config)

	_, err := s.db.conn.Exec(
		`INSERT INTO merge_jobs (id, name, config, trigger_type, trigger_config,
		 enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, string(cfg),
		job.TriggerType, job.TriggerConfig, job.Enabled,
		job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *JobStore) GetJob(id string) (*merge.Job, error) {
	job := &merge.Job{}
	var cfg string

	err := s.db.conn.QueryRow(
		`SELECT id, name, config, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM merge_jobs WHERE id = ?`, id,
	).Scan(
		&job.ID, &job.Name, &cfg,
		&job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&job.LastRunAt, &job.LastStatus, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("merge job not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(cfg), &job.Config)
	return job, nil
}

func (s *JobStore) UpdateJob(job *merge.Job) error {
	job.UpdatedAt = time.Now()
	cfg, _ := json.Marshal(job.Config)

	_, err := s.db.conn.Exec(
		`UPDATE merge_jobs SET name=?, config=?, trigger_type=?, trigger_config=?,
		 enabled=?, updated_at=? WHERE id=?`,
		job.Name, string(cfg), job.TriggerType, job.TriggerConfig,
		job.Enabled, job.UpdatedAt, job.ID,
	)
	return err
}

func (s *JobStore) UpdateJobStatus(id, status, errMsg string) error {
	_, err := s.db.conn.Exec(
		`UPDATE merge_jobs SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		time.Now(), status, errMsg, time.Now(), id,
	)
	return err
}

func (s *JobStore) DeleteJob(id string) error {
	if _, err := s.db.conn.Exec(`DELETE FROM merge_run_logs WHERE job_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM merge_jobs WHERE id = ?`, id)
	return err
}

func (s *JobStore) ListJobs() ([]merge.Job, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, name, config, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM merge_jobs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListEnabledScheduledJobs returns enabled jobs with a schedule or file_watch
// trigger, for the watcher to pick up.
func (s *JobStore) ListEnabledScheduledJobs() ([]merge.Job, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, name, config, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM merge_jobs
		 WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]merge.Job, error) {
	var jobs []merge.Job
	for rows.Next() {
		var job merge.Job
		var cfg string
		if err := rows.Scan(
			&job.ID, &job.Name, &cfg,
			&job.TriggerType, &job.TriggerConfig, &job.Enabled,
			&job.LastRunAt, &job.LastStatus, &job.LastError,
			&job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(cfg), &job.Config)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ── Run logs ───────────────────────────────────────────────

func (s *JobStore) CreateRunLog(l *merge.RunLog) error {
	l.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO merge_run_logs (id, job_id, started_at, finished_at, status,
		 rows_scanned, rows_inserted, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.JobID, l.StartedAt, l.FinishedAt, l.Status,
		l.RowsScanned, l.RowsInserted, l.Error,
	)
	return err
}

func (s *JobStore) ListRunLogs(jobID string, limit int) ([]merge.RunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, started_at, finished_at, status,
		 rows_scanned, rows_inserted, error
		 FROM merge_run_logs WHERE job_id = ?
		 ORDER BY started_at DESC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []merge.RunLog
	for rows.Next() {
		var l merge.RunLog
		if err := rows.Scan(
			&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt, &l.Status,
			&l.RowsScanned, &l.RowsInserted, &l.Error,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
