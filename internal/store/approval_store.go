package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/household-bot/internal/model"
)

// approvalRow mirrors a row of approved_users.
type approvalRow struct {
	UserID int64          `db:"user_id"`
	Expiry sql.NullString `db:"expiry"`
}

func (r approvalRow) toEntry() (model.ApprovalEntry, error) {
	entry := model.ApprovalEntry{UserID: r.UserID}
	if r.Expiry.Valid && r.Expiry.String != "" {
		expiry, err := model.ParseDate(r.Expiry.String)
		if err != nil {
			return model.ApprovalEntry{}, fmt.Errorf("approval for %d: %w", r.UserID, err)
		}
		entry.Expiry = &expiry
	}
	return entry, nil
}

// expiryValue converts an optional expiry to its stored form.
func expiryValue(expiry *time.Time) sql.NullString {
	if expiry == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: expiry.UTC().Format(model.DateLayout), Valid: true}
}

// UpsertApproval inserts or overwrites the approval for entry.UserID.
func (s *SQLiteStore) UpsertApproval(ctx context.Context, entry model.ApprovalEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO approved_users (user_id, expiry, granted_at)
		VALUES (?, ?, ?)`,
		entry.UserID, expiryValue(entry.Expiry), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting approval for %d: %w", entry.UserID, err)
	}
	return nil
}

// GetApproval retrieves the approval for userID.
func (s *SQLiteStore) GetApproval(
	ctx context.Context,
	userID int64,
) (*model.ApprovalEntry, error) {
	var row approvalRow
	err := s.db.GetContext(ctx, &row,
		"SELECT user_id, expiry FROM approved_users WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval for %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting approval for %d: %w", userID, err)
	}

	entry, err := row.toEntry()
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteApproval removes the approval for userID. Removing an absent
// approval is not an error.
func (s *SQLiteStore) DeleteApproval(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM approved_users WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("deleting approval for %d: %w", userID, err)
	}
	return nil
}

// ListApprovals returns every stored approval ordered by user ID.
func (s *SQLiteStore) ListApprovals(ctx context.Context) ([]model.ApprovalEntry, error) {
	var rows []approvalRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT user_id, expiry FROM approved_users ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("querying approvals: %w", err)
	}

	entries := make([]model.ApprovalEntry, 0, len(rows))
	for _, r := range rows {
		entry, err := r.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
