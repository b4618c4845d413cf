// Package accounts resolves mailbox identifiers to usable mail accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/household-bot/internal/model"
	"github.com/nhle/household-bot/internal/store"
)

// ErrAccountNotFound is returned when no account exists for an address.
var ErrAccountNotFound = errors.New("account not found")

// AccountStore persists mail accounts.
type AccountStore interface {
	UpsertAccount(ctx context.Context, acc model.MailAccount) error
	GetAccount(ctx context.Context, email string) (*model.MailAccount, error)
	DeleteAccount(ctx context.Context, email string) error
	ListAccounts(ctx context.Context) ([]store.AccountSummary, error)
}

// SecretStore holds mailbox passwords outside the database.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Directory looks up and maintains mail accounts. When a SecretStore is
// configured, passwords are kept there and the database column is left
// empty.
type Directory struct {
	store   AccountStore
	secrets SecretStore
}

// NewDirectory creates a Directory. secrets may be nil.
func NewDirectory(s AccountStore, secrets SecretStore) *Directory {
	return &Directory{store: s, secrets: secrets}
}

func secretKey(email string) string {
	return "mailbox:" + email
}

// GetAccount returns the complete account for email, including its
// password.
func (d *Directory) GetAccount(ctx context.Context, email string) (model.MailAccount, error) {
	acc, err := d.store.GetAccount(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return model.MailAccount{}, fmt.Errorf("%s: %w", email, ErrAccountNotFound)
	}
	if err != nil {
		return model.MailAccount{}, err
	}

	if acc.Password == "" && d.secrets != nil {
		password, err := d.secrets.Get(secretKey(acc.Email))
		if err != nil {
			return model.MailAccount{}, fmt.Errorf("loading password for %s: %w", email, err)
		}
		acc.Password = password
	}

	return *acc, nil
}

// Save validates and stores acc, replacing any account with the same
// email.
func (d *Directory) Save(ctx context.Context, acc model.MailAccount) error {
	if err := acc.Validate(); err != nil {
		return err
	}

	stored := acc
	if d.secrets != nil {
		if err := d.secrets.Set(secretKey(acc.Email), acc.Password); err != nil {
			return fmt.Errorf("saving password for %s: %w", acc.Email, err)
		}
		stored.Password = ""
	}

	return d.store.UpsertAccount(ctx, stored)
}

// Delete removes the account and any password held for it.
func (d *Directory) Delete(ctx context.Context, email string) error {
	if err := d.store.DeleteAccount(ctx, email); err != nil {
		return err
	}
	if d.secrets != nil {
		if err := d.secrets.Delete(secretKey(email)); err != nil {
			return fmt.Errorf("removing password for %s: %w", email, err)
		}
	}
	return nil
}

// List returns the stored accounts without credentials.
func (d *Directory) List(ctx context.Context) ([]store.AccountSummary, error) {
	return d.store.ListAccounts(ctx)
}
