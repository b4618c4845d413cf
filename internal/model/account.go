package model

import (
	"fmt"
	"strings"
)

// Protocol identifies how a mailbox is polled.
type Protocol string

const (
	ProtocolIMAP Protocol = "imap"
	ProtocolPOP3 Protocol = "pop3"
)

// ParseProtocol converts a case-insensitive protocol tag to a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case ProtocolIMAP, ProtocolPOP3:
		return p, nil
	default:
		return "", fmt.Errorf("protocol must be imap or pop3, got %q", s)
	}
}

// MailAccount identifies a shared mailbox that can be searched for
// household links.
type MailAccount struct {
	// Email is the mailbox address and the account's primary key.
	Email string `json:"email" db:"email"`

	// Password is the mailbox credential. It may be empty in the
	// database when the secret is held in the OS keyring instead.
	Password string `json:"-" db:"password"`

	Protocol Protocol `json:"protocol" db:"protocol"`
	Host     string   `json:"host" db:"server"`
	Port     int      `json:"port" db:"port"`
}

// Addr returns the host:port pair used to dial the mail server.
func (a MailAccount) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Validate reports whether every field of the account is populated and
// the protocol tag is known.
func (a MailAccount) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("account email must not be empty")
	}
	if a.Password == "" {
		return fmt.Errorf("account %s: password must not be empty", a.Email)
	}
	if _, err := ParseProtocol(string(a.Protocol)); err != nil {
		return fmt.Errorf("account %s: %w", a.Email, err)
	}
	if strings.TrimSpace(a.Host) == "" {
		return fmt.Errorf("account %s: host must not be empty", a.Email)
	}
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("account %s: invalid port %d", a.Email, a.Port)
	}
	return nil
}
