package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dokubo/veriseal/internal/match"
	"github.com/dokubo/veriseal/internal/verdict"
)

// PostgresStore persists submissions and verification results in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed submission store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, sub *Submission) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO submissions (
			id, account_owner_ref, raw_ocr_text, raw_qr_payload,
			captured_at, device_id, session_id, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.AccountOwnerRef, sub.RawOCRText, sub.RawQRPayload,
		nullTime(sub.CapturedAt), nullString(sub.DeviceID), nullString(sub.SessionID), sub.ReceivedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Submission, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, account_owner_ref, raw_ocr_text, raw_qr_payload,
		       captured_at, device_id, session_id, received_at
		FROM submissions WHERE id = $1`, id)

	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, ErrSubmissionNotFound
	}
	return sub, err
}

func (p *PostgresStore) CreateResult(ctx context.Context, result *verdict.Result) error {
	comparisons, err := json.Marshal(result.Comparisons)
	if err != nil {
		return fmt.Errorf("submission: encode comparisons: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO verification_results (
			submission_id, verdict, score, comparisons, decided_at
		) VALUES ($1, $2, $3::NUMERIC(5,3), $4, $5)`,
		result.SubmissionID, string(result.Verdict), result.Score, comparisons, result.DecidedAt,
	)
	return err
}

func (p *PostgresStore) GetResult(ctx context.Context, submissionID string) (*verdict.Result, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT submission_id, verdict, score, comparisons, decided_at
		FROM verification_results WHERE submission_id = $1`, submissionID)

	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, ErrResultNotFound
	}
	return r, err
}

func (p *PostgresStore) ListResultsByOwner(ctx context.Context, ownerRef string, before time.Time, limit int) ([]*verdict.Result, error) {
	query := `
		SELECT r.submission_id, r.verdict, r.score, r.comparisons, r.decided_at
		FROM verification_results r
		JOIN submissions s ON s.id = r.submission_id
		WHERE s.account_owner_ref = $1`
	args := []interface{}{ownerRef}
	if !before.IsZero() {
		query += ` AND r.decided_at < $2`
		args = append(args, before)
	}
	query += fmt.Sprintf(` ORDER BY r.decided_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []*verdict.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- scanners ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(sc scanner) (*Submission, error) {
	sub := &Submission{}
	var (
		capturedAt sql.NullTime
		deviceID   sql.NullString
		sessionID  sql.NullString
	)

	err := sc.Scan(
		&sub.ID, &sub.AccountOwnerRef, &sub.RawOCRText, &sub.RawQRPayload,
		&capturedAt, &deviceID, &sessionID, &sub.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}

	if capturedAt.Valid {
		sub.CapturedAt = capturedAt.Time
	}
	sub.DeviceID = deviceID.String
	sub.SessionID = sessionID.String
	return sub, nil
}

func scanResult(sc scanner) (*verdict.Result, error) {
	r := &verdict.Result{}
	var (
		verdictStr  string
		comparisons []byte
	)

	err := sc.Scan(&r.SubmissionID, &verdictStr, &r.Score, &comparisons, &r.DecidedAt)
	if err != nil {
		return nil, err
	}

	r.Verdict = verdict.Verdict(verdictStr)
	if len(comparisons) > 0 {
		var fcs []match.FieldComparison
		if err := json.Unmarshal(comparisons, &fcs); err != nil {
			return nil, fmt.Errorf("submission: decode comparisons: %w", err)
		}
		r.Comparisons = fcs
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
