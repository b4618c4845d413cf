package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/household-bot/internal/model"
)

// UpsertAccount inserts an account or replaces the stored fields of an
// existing account with the same email.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, acc model.MailAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (email, password, protocol, server, port, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			password = excluded.password,
			protocol = excluded.protocol,
			server = excluded.server,
			port = excluded.port,
			updated_at = excluded.updated_at`,
		acc.Email, acc.Password, string(acc.Protocol), acc.Host, acc.Port,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", acc.Email, err)
	}
	return nil
}

// GetAccount retrieves an account by its exact email address.
func (s *SQLiteStore) GetAccount(
	ctx context.Context,
	email string,
) (*model.MailAccount, error) {
	var acc model.MailAccount
	err := s.db.GetContext(ctx, &acc, `
		SELECT email, password, protocol, server, port
		FROM accounts WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", email, err)
	}
	return &acc, nil
}

// DeleteAccount removes an account. Deleting an unknown account is not
// an error.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE email = ?", email)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", email, err)
	}
	return nil
}

// ListAccounts returns every stored account ordered by email, without
// credentials.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]AccountSummary, error) {
	var accounts []AccountSummary
	err := s.db.SelectContext(ctx, &accounts,
		"SELECT email, server, port FROM accounts ORDER BY email")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	return accounts, nil
}
