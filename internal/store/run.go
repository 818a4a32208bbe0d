package store

import (
	"database/sql"
	"time"
)

// TrainingRun is one recorded training job.
type TrainingRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Error      string
	Samples    int
	Labels     int
}

// RunRepository records training run history.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the training run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// RecordStart inserts a new run row in the preparing state.
func (r *RunRepository) RecordStart(id string, startedAt time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO training_runs (id, started_at, status) VALUES (?, ?, 'preparing')`,
		id, startedAt,
	)
	return err
}

// RecordFinish marks a run as finished with its outcome.
func (r *RunRepository) RecordFinish(id string, status string, errMsg string, samples, labels int) error {
	result, err := r.db.Exec(
		`UPDATE training_runs
		 SET finished_at = ?, status = ?, error = ?, samples = ?, labels = ?
		 WHERE id = ?`,
		time.Now(), status, errMsg, samples, labels, id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List retrieves the most recent runs, newest first.
func (r *RunRepository) List(limit int) ([]*TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(
		`SELECT id, started_at, finished_at, status, error, samples, labels
		 FROM training_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*TrainingRun
	for rows.Next() {
		run := &TrainingRun{}
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.Error, &run.Samples, &run.Labels); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
