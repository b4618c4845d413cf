package store

import (
	"context"
	"errors"

	"github.com/nhle/household-bot/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// AccountSummary is the non-secret view of a stored mail account.
type AccountSummary struct {
	Email string `db:"email"`
	Host  string `db:"server"`
	Port  int    `db:"port"`
}

// Store defines the persistence interface for mail accounts and
// requester approvals.
type Store interface {
	// === Mail accounts ===

	UpsertAccount(ctx context.Context, acc model.MailAccount) error
	GetAccount(ctx context.Context, email string) (*model.MailAccount, error)
	DeleteAccount(ctx context.Context, email string) error
	ListAccounts(ctx context.Context) ([]AccountSummary, error)

	// === Approvals ===

	UpsertApproval(ctx context.Context, entry model.ApprovalEntry) error
	GetApproval(ctx context.Context, userID int64) (*model.ApprovalEntry, error)
	DeleteApproval(ctx context.Context, userID int64) error
	ListApprovals(ctx context.Context) ([]model.ApprovalEntry, error)

	Close() error
}
