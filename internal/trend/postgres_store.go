package trend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists the signature index in PostgreSQL. Updates run in
// a transaction holding a row lock on the signature, so concurrent
// recordings of one fingerprint serialize the same way the memory store's
// sharded mutex does.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed signature store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Update(ctx context.Context, fingerprint string, attrs Signature, fn func(*SignatureRecord) error) (*SignatureRecord, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("trend: encode attributes: %w", err)
	}

	// Ensure the row exists so FOR UPDATE has something to lock.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO scam_signatures (fingerprint, attributes, count, first_seen, last_seen, warned)
		VALUES ($1, $2, 0, NOW(), NOW(), FALSE)
		ON CONFLICT (fingerprint) DO NOTHING`,
		fingerprint, attrsJSON,
	)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT fingerprint, attributes, count, first_seen, last_seen, warned
		FROM scam_signatures WHERE fingerprint = $1 FOR UPDATE`, fingerprint)

	rec, err := scanSignature(row)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT owner_ref, submission_id, seen_at
		FROM signature_occurrences
		WHERE fingerprint = $1
		ORDER BY seen_at ASC`, fingerprint)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var o Occurrence
		if err := rows.Scan(&o.Owner, &o.SubmissionID, &o.At); err != nil {
			_ = rows.Close()
			return nil, err
		}
		rec.Occurrences = append(rec.Occurrences, o)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := fn(rec); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE scam_signatures
		SET count = $2, first_seen = $3, last_seen = $4, warned = $5
		WHERE fingerprint = $1`,
		fingerprint, rec.Count, rec.FirstSeen, rec.LastSeen, rec.Warned,
	)
	if err != nil {
		return nil, err
	}

	if err := replaceOccurrences(ctx, tx, fingerprint, rec.Occurrences); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *PostgresStore) Get(ctx context.Context, fingerprint string) (*SignatureRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT fingerprint, attributes, count, first_seen, last_seen, warned
		FROM scam_signatures WHERE fingerprint = $1`, fingerprint)

	rec, err := scanSignature(row)
	if err == sql.ErrNoRows {
		return nil, ErrSignatureNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT owner_ref, submission_id, seen_at
		FROM signature_occurrences
		WHERE fingerprint = $1
		ORDER BY seen_at ASC`, fingerprint)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var o Occurrence
		if err := rows.Scan(&o.Owner, &o.SubmissionID, &o.At); err != nil {
			return nil, err
		}
		rec.Occurrences = append(rec.Occurrences, o)
	}
	return rec, rows.Err()
}

func (p *PostgresStore) List(ctx context.Context, limit int) ([]*SignatureRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT fingerprint, attributes, count, first_seen, last_seen, warned
		FROM scam_signatures
		ORDER BY count DESC, fingerprint ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*SignatureRecord
	for rows.Next() {
		rec, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// replaceOccurrences rewrites the occurrence rows for a signature from the
// record produced by the update callback. Occurrences are a multiset (the
// same submission may be recorded more than once), so the rows are replaced
// wholesale rather than diffed by submission ID. The row lock on the parent
// signature keeps concurrent rewrites from interleaving.
func replaceOccurrences(ctx context.Context, tx *sql.Tx, fingerprint string, after []Occurrence) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM signature_occurrences WHERE fingerprint = $1`, fingerprint); err != nil {
		return err
	}
	for _, o := range after {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO signature_occurrences (fingerprint, owner_ref, submission_id, seen_at)
			VALUES ($1, $2, $3, $4)`,
			fingerprint, o.Owner, o.SubmissionID, o.At,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

type sigScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignature(sc sigScanner) (*SignatureRecord, error) {
	rec := &SignatureRecord{}
	var attrsJSON []byte

	err := sc.Scan(&rec.Fingerprint, &attrsJSON, &rec.Count, &rec.FirstSeen, &rec.LastSeen, &rec.Warned)
	if err != nil {
		return nil, err
	}

	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("trend: decode attributes: %w", err)
		}
	}
	return rec, nil
}

var _ Store = (*PostgresStore)(nil)
