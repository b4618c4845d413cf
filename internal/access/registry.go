// Package access decides which chat users may request household links.
package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/household-bot/internal/model"
	"github.com/nhle/household-bot/internal/store"
)

// ApprovalStore persists approval entries.
type ApprovalStore interface {
	UpsertApproval(ctx context.Context, entry model.ApprovalEntry) error
	GetApproval(ctx context.Context, userID int64) (*model.ApprovalEntry, error)
	DeleteApproval(ctx context.Context, userID int64) error
	ListApprovals(ctx context.Context) ([]model.ApprovalEntry, error)
}

// Registry tracks approved users. The admin identity is always approved.
// Expired approvals are deleted the first time they are read, so no
// separate cleanup job is needed.
type Registry struct {
	adminID int64
	store   ApprovalStore
	now     func() time.Time
	log     *zap.SugaredLogger

	// mu makes each check-and-prune, grant and revoke atomic with
	// respect to the others.
	mu sync.Mutex
}

// NewRegistry creates a Registry backed by s.
func NewRegistry(adminID int64, s ApprovalStore, log *zap.SugaredLogger) *Registry {
	return &Registry{
		adminID: adminID,
		store:   s,
		now:     time.Now,
		log:     log,
	}
}

// IsAdmin reports whether userID is the configured admin.
func (r *Registry) IsAdmin(userID int64) bool {
	return userID == r.adminID
}

// IsAuthorized reports whether userID may use the bot today (UTC). An
// approval whose expiry date has passed is removed as a side effect.
func (r *Registry) IsAuthorized(ctx context.Context, userID int64) (bool, error) {
	if r.IsAdmin(userID) {
		return true, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.store.GetApproval(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking approval for %d: %w", userID, err)
	}

	if entry.ExpiredOn(r.now()) {
		if err := r.store.DeleteApproval(ctx, userID); err != nil {
			return false, fmt.Errorf("pruning expired approval for %d: %w", userID, err)
		}
		r.log.Infow("approval expired and removed",
			"user_id", userID, "expiry", entry.ExpiryString())
		return false, nil
	}

	return true, nil
}

// Grant approves userID until expiry (inclusive), or permanently when
// expiry is nil. Any existing approval is replaced. A past expiry is
// stored as given and simply evaluates as unauthorized.
func (r *Registry) Grant(ctx context.Context, userID int64, expiry *time.Time) error {
	entry := model.ApprovalEntry{UserID: userID}
	if expiry != nil {
		d := model.Date(*expiry)
		entry.Expiry = &d
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.UpsertApproval(ctx, entry); err != nil {
		return fmt.Errorf("granting access to %d: %w", userID, err)
	}
	r.log.Infow("approval granted", "user_id", userID, "expiry", entry.ExpiryString())
	return nil
}

// Revoke removes any approval for userID. Revoking an unknown user is
// not an error.
func (r *Registry) Revoke(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DeleteApproval(ctx, userID); err != nil {
		return fmt.Errorf("revoking access for %d: %w", userID, err)
	}
	r.log.Infow("approval revoked", "user_id", userID)
	return nil
}

// List returns the current approvals. Expired entries found while
// listing are pruned and omitted.
func (r *Registry) List(ctx context.Context) ([]model.ApprovalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.store.ListApprovals(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing approvals: %w", err)
	}

	today := r.now()
	current := entries[:0]
	for _, e := range entries {
		if !e.ExpiredOn(today) {
			current = append(current, e)
			continue
		}
		if err := r.store.DeleteApproval(ctx, e.UserID); err != nil {
			return nil, fmt.Errorf("pruning expired approval for %d: %w", e.UserID, err)
		}
		r.log.Infow("approval expired and removed",
			"user_id", e.UserID, "expiry", e.ExpiryString())
	}
	return current, nil
}
