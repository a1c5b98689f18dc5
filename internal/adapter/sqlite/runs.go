package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

const runColumns = `id, output_name, variant, status, progress, message, vector_path,
	features, burned_pixels, burned_area_ha, error, started_at, finished_at`

// StartRun inserts a new run row.
func (s *Store) StartRun(ctx context.Context, run domain.Run) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.OutputName, string(run.Variant), string(run.Status), run.Progress, run.Message,
		run.VectorPath, run.Features, run.BurnedPixels, run.BurnedAreaHa, run.Error,
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateProgress stores the latest milestone of a running analysis.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent int, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET progress = ?, message = ? WHERE id = ?`, percent, message, id)
	if err != nil {
		return fmt.Errorf("update run %s progress: %w", id, err)
	}
	return expectOne(res, id)
}

// FinishRun stores the final state of a run.
func (s *Store) FinishRun(ctx context.Context, run domain.Run) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET
		status = ?, progress = ?, message = ?, vector_path = ?, features = ?,
		burned_pixels = ?, burned_area_ha = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(run.Status), run.Progress, run.Message, run.VectorPath, run.Features,
		run.BurnedPixels, run.BurnedAreaHa, run.Error, formatTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	return expectOne(res, run.ID)
}

// GetRun loads one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns the most recently started runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (domain.Run, error) {
	var (
		run               domain.Run
		variant, status   string
		started, finished string
	)
	err := sc.Scan(&run.ID, &run.OutputName, &variant, &status, &run.Progress, &run.Message,
		&run.VectorPath, &run.Features, &run.BurnedPixels, &run.BurnedAreaHa, &run.Error,
		&started, &finished)
	if err != nil {
		return domain.Run{}, err
	}
	run.Variant = domain.Variant(variant)
	run.Status = domain.RunStatus(status)
	if run.StartedAt, err = parseTime(started); err != nil {
		return domain.Run{}, fmt.Errorf("run %s started_at: %w", run.ID, err)
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return domain.Run{}, fmt.Errorf("run %s finished_at: %w", run.ID, err)
	}
	return run, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}
