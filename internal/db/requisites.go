package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const requisiteColumns = `id, name, value, bank, email, password, is_active`

// GetActiveRequisite returns the single active wallet, or
// ErrNoActiveRequisite. Activation keeps at most one row active, but the
// ORDER BY guards against drift from manual edits.
func (d *DB) GetActiveRequisite(ctx context.Context) (Requisite, error) {
	row := d.Pool.QueryRow(ctx, `
SELECT `+requisiteColumns+` FROM requisites WHERE is_active ORDER BY id DESC LIMIT 1`)
	r, err := scanRequisite(row)
	if err == pgx.ErrNoRows {
		return Requisite{}, ErrNoActiveRequisite
	}
	return r, err
}

func (d *DB) ListRequisites(ctx context.Context) ([]Requisite, error) {
	rows, err := d.Pool.Query(ctx, `SELECT `+requisiteColumns+` FROM requisites ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list requisites: %w", err)
	}
	defer rows.Close()

	var out []Requisite
	for rows.Next() {
		r, err := scanRequisite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) CreateRequisite(ctx context.Context, r *Requisite) (int64, error) {
	var id int64
	err := d.Pool.QueryRow(ctx, `
INSERT INTO requisites (name, value, bank, email, password, is_active)
VALUES ($1, $2, $3, $4, $5, FALSE)
RETURNING id
`, r.Name, r.Value, r.Bank, r.Email, r.Password).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create requisite: %w", err)
	}
	return id, nil
}

// ActivateRequisite flips the chosen wallet on and every other one off in a
// single transaction, enforcing the at-most-one-active invariant.
func (d *DB) ActivateRequisite(ctx context.Context, id int64) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("activate requisite: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE requisites SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("activate requisite: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE requisites SET is_active = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activate requisite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (d *DB) DeleteRequisite(ctx context.Context, id int64) error {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM requisites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete requisite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRequisite(row rowScanner) (Requisite, error) {
	var r Requisite
	err := row.Scan(&r.ID, &r.Name, &r.Value, &r.Bank, &r.Email, &r.Password, &r.IsActive)
	if err != nil {
		return Requisite{}, err
	}
	return r, nil
}
