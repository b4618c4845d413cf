package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/knadh/go-pop3"

	"github.com/nhle/household-bot/internal/model"
)

// pop3Conn wraps an authenticated go-pop3 connection.
type pop3Conn struct {
	conn *pop3.Conn
}

// newPOP3Dialer returns a dialer that authenticates with USER/PASS,
// over implicit TLS when tlsEnabled is set.
func newPOP3Dialer(connectTimeout time.Duration, tlsEnabled bool) pop3Dialer {
	return func(ctx context.Context, acc model.MailAccount) (pop3Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, connectionError(acc, "dial", err)
		}

		client := pop3.New(pop3.Opt{
			Host:        acc.Host,
			Port:        acc.Port,
			TLSEnabled:  tlsEnabled,
			DialTimeout: connectTimeout,
		})

		conn, err := client.NewConn()
		if err != nil {
			return nil, connectionError(acc, "dial", err)
		}

		if err := conn.User(acc.Email); err != nil {
			_ = conn.Quit()
			return nil, connectionError(acc, "user", err)
		}
		if err := conn.Pass(acc.Password); err != nil {
			_ = conn.Quit()
			return nil, connectionError(acc, "pass", err)
		}

		return &pop3Conn{conn: conn}, nil
	}
}

// Count returns the number of messages in the maildrop.
func (c *pop3Conn) Count() (int, error) {
	count, _, err := c.conn.Stat()
	if err != nil {
		return 0, fmt.Errorf("pop3 STAT: %w", err)
	}
	return count, nil
}

// Retrieve returns the raw source of message n.
func (c *pop3Conn) Retrieve(n int) ([]byte, error) {
	buf, err := c.conn.RetrRaw(n)
	if err != nil {
		return nil, fmt.Errorf("pop3 RETR %d: %w", n, err)
	}
	return buf.Bytes(), nil
}

// Close ends the session with QUIT.
func (c *pop3Conn) Close() error {
	return c.conn.Quit()
}
