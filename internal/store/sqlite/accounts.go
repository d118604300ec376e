package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tapfarm/internal/model"
)

// SyncAccounts registers every credential from the account list and returns
// the accounts, in input order, carrying their stable IDs.
func (s *Store) SyncAccounts(ctx context.Context, accounts []model.Account) ([]model.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	out := make([]model.Account, 0, len(accounts))
	for _, acc := range accounts {
		if acc.Credential == "" {
			return nil, errors.New("credential is required")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, credential, label, line, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(credential) DO UPDATE SET
				label = excluded.label,
				line = excluded.line,
				updated_at = excluded.updated_at
		`, uuid.NewString(), acc.Credential, acc.Label, acc.Line, now, now)
		if err != nil {
			return nil, fmt.Errorf("upsert account: %w", err)
		}

		var createdAt, updatedAt int64
		if err := tx.QueryRowContext(ctx, `
			SELECT id, created_at, updated_at FROM accounts WHERE credential = ?
		`, acc.Credential).Scan(&acc.ID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("read account: %w", err)
		}
		acc.CreatedAt = time.UnixMilli(createdAt)
		acc.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, acc)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, credential, label, line, created_at, updated_at
		FROM accounts ORDER BY line ASC, created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var acc model.Account
		var createdAt, updatedAt int64
		if err := rows.Scan(&acc.ID, &acc.Credential, &acc.Label, &acc.Line, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		acc.CreatedAt = time.UnixMilli(createdAt)
		acc.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
