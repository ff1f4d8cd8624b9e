package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/diagnoclinic/apiserver/types"
)

// PostgresHistoryRepository mirrors the patient history into the diagnoses
// table. The full record is kept as JSONB; the indexed columns only serve
// ordering and filtering. Rows are ordered by insertion sequence since
// timestamps can tie and IDs are random.
type PostgresHistoryRepository struct {
	db    *sql.DB
	limit int
}

func NewPostgresHistoryRepository(db *sql.DB, limit int) *PostgresHistoryRepository {
	if limit < 1 {
		limit = 1000
	}
	return &PostgresHistoryRepository{db: db, limit: limit}
}

func (r *PostgresHistoryRepository) Append(ctx context.Context, record types.DiagnosisRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insert = `
		INSERT INTO diagnoses (id, patient_cne, disease, doctor_username, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(
		ctx,
		insert,
		record.ID,
		record.Patient.CNE,
		record.Diagnostic.Disease,
		record.Physician.Username,
		record.Timestamp,
		payload,
	); err != nil {
		return err
	}

	const trim = `
		DELETE FROM diagnoses
		WHERE id IN (
			SELECT id FROM diagnoses
			ORDER BY seq DESC
			OFFSET $1
		)`
	if _, err := tx.ExecContext(ctx, trim, r.limit); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresHistoryRepository) List(ctx context.Context, limit int) ([]types.DiagnosisRecord, error) {
	if limit < 1 || limit > r.limit {
		limit = r.limit
	}

	const query = `
		SELECT payload
		FROM diagnoses
		ORDER BY seq DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]types.DiagnosisRecord, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var record types.DiagnosisRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *PostgresHistoryRepository) Get(ctx context.Context, id string) (types.DiagnosisRecord, error) {
	const query = `SELECT payload FROM diagnoses WHERE id = $1`
	var payload []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.DiagnosisRecord{}, ErrNotFound
		}
		return types.DiagnosisRecord{}, err
	}

	var record types.DiagnosisRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return types.DiagnosisRecord{}, err
	}
	return record, nil
}

func (r *PostgresHistoryRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM diagnoses`
	var total int
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
