package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

const alertColumns = `id, detection_time, alert_type, audio_file_path, waveform_data, spectrogram_data,
	suspected_reason, action, comment, analysis_status, analysis_error, analyzed_at, updated_at`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) InsertAlert(ctx context.Context, alert *models.AnomalyAlert) (*models.AnomalyAlert, error) {
	a := prepareInsert(alert)

	row := s.pool.QueryRow(ctx,
		`INSERT INTO anomaly_alerts (id, detection_time, alert_type, audio_file_path, waveform_data, spectrogram_data,
		   suspected_reason, action, comment, analysis_status, analysis_error, analyzed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+alertColumns,
		a.ID, a.DetectionTime, a.AlertType, a.AudioFilePath, a.WaveformData, a.SpectrogramData,
		a.SuspectedReason, a.Action, a.Comment, a.AnalysisStatus, a.AnalysisError, a.AnalyzedAt, a.UpdatedAt)

	created, err := scanAlert(row)
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("insert alert: invalid alert type %q: %w", a.AlertType, err)
		}
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetAlert(ctx context.Context, id uuid.UUID) (*models.AnomalyAlert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM anomaly_alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.AnomalyAlert, int, error) {
	// Build WHERE clause from the set filter fields only
	var conditions []string
	var args []any
	argIdx := 1

	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("detection_time >= $%d", argIdx))
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("detection_time <= $%d", argIdx))
		args = append(args, *filter.EndDate)
		argIdx++
	}
	if filter.AlertType != nil {
		conditions = append(conditions, fmt.Sprintf("alert_type = $%d", argIdx))
		args = append(args, *filter.AlertType)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM anomaly_alerts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	limit, offset := filter.Window()
	dataQuery := fmt.Sprintf(
		`SELECT %s FROM anomaly_alerts%s ORDER BY detection_time DESC, id LIMIT $%d OFFSET $%d`,
		alertColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.AnomalyAlert, 0, limit)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, total, rows.Err()
}

func (s *PostgresStore) UpdateAlert(ctx context.Context, id uuid.UUID, upd AlertUpdate) (*models.AnomalyAlert, error) {
	if upd.Empty() {
		return s.GetAlert(ctx, id)
	}

	sets := []string{"updated_at = $2"}
	args := []any{id, time.Now().UTC()}
	argIdx := 3

	if upd.Action != nil {
		sets = append(sets, fmt.Sprintf("action = $%d", argIdx))
		args = append(args, *upd.Action)
		argIdx++
	}
	if upd.Comment != nil {
		sets = append(sets, fmt.Sprintf("comment = $%d", argIdx))
		args = append(args, *upd.Comment)
		argIdx++
	}
	if upd.SuspectedReason != nil {
		sets = append(sets, fmt.Sprintf("suspected_reason = $%d", argIdx))
		args = append(args, *upd.SuspectedReason)
		argIdx++
	}

	query := `UPDATE anomaly_alerts SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + alertColumns
	a, err := scanAlert(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update alert: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) AttachAnalysis(ctx context.Context, id uuid.UUID, result AnalysisResult) error {
	waveform := result.Waveform
	if waveform == nil {
		waveform = []float64{}
	}
	spectrogram := result.Spectrogram
	if spectrogram == nil {
		spectrogram = [][]float64{}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE anomaly_alerts
		 SET waveform_data = $2, spectrogram_data = $3, analysis_status = $4, analysis_error = $5,
		     analyzed_at = $6, updated_at = NOW()
		 WHERE id = $1`,
		id, waveform, spectrogram, result.Status, result.Error, result.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("attach analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteAlert(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM anomaly_alerts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAll removes every alert and reports how many were removed.
func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM anomaly_alerts`)
	if err != nil {
		return 0, fmt.Errorf("delete all alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAlert(row pgx.Row) (*models.AnomalyAlert, error) {
	var a models.AnomalyAlert
	if err := row.Scan(&a.ID, &a.DetectionTime, &a.AlertType, &a.AudioFilePath, &a.WaveformData, &a.SpectrogramData,
		&a.SuspectedReason, &a.Action, &a.Comment, &a.AnalysisStatus, &a.AnalysisError, &a.AnalyzedAt,
		&a.UpdatedAt); err != nil {
		return nil, err
	}
	if a.WaveformData == nil {
		a.WaveformData = []float64{}
	}
	if a.SpectrogramData == nil {
		a.SpectrogramData = [][]float64{}
	}
	return &a, nil
}

// isCheckViolation checks if a pgx error is a CHECK constraint violation.
func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514" // check_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
