package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sessionimport/internal/services"
)

// ErrRunNotFound is returned when no run matches an id or id prefix.
var ErrRunNotFound = fmt.Errorf("run %w", services.ErrNotFound)

// ErrAmbiguousRun is returned when an id prefix matches more than one run.
var ErrAmbiguousRun = errors.New("run id prefix is ambiguous")

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, protocol, phases, started_at, finished_at, total, uninitialized, errored, to_transfer, transferred, processed, cancelled"

// RecordRun stores run and its results in one transaction, assigning an id
// when run has none.
func (s *Store) RecordRun(ctx context.Context, run Run, results []Result) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()

	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin run tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Protocol,
			strings.Join(run.Phases, ","),
			run.StartedAt.Format(timeLayout),
			run.FinishedAt.Format(timeLayout),
			run.Counts.Total,
			run.Counts.Uninitialized,
			run.Counts.Errored,
			run.Counts.ToTransfer,
			run.Counts.Transferred,
			run.Counts.Processed,
			boolToInt(run.Cancelled),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, result := range results {
			params, err := json.Marshal(result.Params)
			if err != nil {
				return fmt.Errorf("marshal params: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO importer_results (
                    run_id, position, kind, subject, unit_key, params_json,
                    initialized, transfer_state, transferred, processed,
                    init_error, check_error, transfer_error, processing_error
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID,
				result.Position,
				result.Kind,
				result.Subject,
				result.UnitKey,
				string(params),
				boolToInt(result.Initialized),
				result.TransferState,
				boolToInt(result.Transferred),
				boolToInt(result.Processed),
				nullableString(result.InitError),
				nullableString(result.CheckError),
				nullableString(result.TransferError),
				nullableString(result.ProcessingError),
			); err != nil {
				return fmt.Errorf("insert importer result: %w", err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun resolves a full run id or a unique id prefix.
func (s *Store) GetRun(ctx context.Context, idOrPrefix string) (Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%")
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		if run.ID == idOrPrefix {
			return run, nil
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, idOrPrefix)
	}
}

// RunResults returns the importer results of a run in recorded order.
func (s *Store) RunResults(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, kind, subject, unit_key, params_json, initialized, transfer_state,
                transferred, processed, init_error, check_error, transfer_error, processing_error
         FROM importer_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			result                         Result
			paramsJSON                     string
			initialized, transferred, done int
			initErr, checkErr              sql.NullString
			transferErr, processingErr     sql.NullString
		)
		if err := rows.Scan(
			&result.Position,
			&result.Kind,
			&result.Subject,
			&result.UnitKey,
			&paramsJSON,
			&initialized,
			&result.TransferState,
			&transferred,
			&done,
			&initErr,
			&checkErr,
			&transferErr,
			&processingErr,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &result.Params); err != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
		result.Initialized = initialized != 0
		result.Transferred = transferred != 0
		result.Processed = done != 0
		result.InitError = initErr.String
		result.CheckError = checkErr.String
		result.TransferError = transferErr.String
		result.ProcessingError = processingErr.String
		results = append(results, result)
	}
	return results, rows.Err()
}

// PruneBefore deletes runs that started before cutoff and returns how many were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC().Format(timeLayout))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run                   Run
		phases                string
		startedRaw, finishRaw string
		cancelled             int
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Protocol,
		&phases,
		&startedRaw,
		&finishRaw,
		&run.Counts.Total,
		&run.Counts.Uninitialized,
		&run.Counts.Errored,
		&run.Counts.ToTransfer,
		&run.Counts.Transferred,
		&run.Counts.Processed,
		&cancelled,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if phases != "" {
		run.Phases = strings.Split(phases, ",")
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishRaw)
	run.Cancelled = cancelled != 0
	return run, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
