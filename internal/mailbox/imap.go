package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/household-bot/internal/model"
)

// imapConn wraps a go-imap v2 client that has logged in and selected
// INBOX.
type imapConn struct {
	client *imapclient.Client
	stop   func() bool
}

// newIMAPDialer returns a dialer that connects over implicit TLS,
// authenticates, and selects INBOX read-only. The session deadline and
// context cancellation both tear down the underlying connection.
func newIMAPDialer(connectTimeout, sessionTimeout time.Duration) imapDialer {
	return func(ctx context.Context, acc model.MailAccount) (imapSession, error) {
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: connectTimeout},
			Config:    &tls.Config{ServerName: acc.Host},
		}
		conn, err := dialer.DialContext(ctx, "tcp", acc.Addr())
		if err != nil {
			return nil, connectionError(acc, "dial", err)
		}
		if sessionTimeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(sessionTimeout))
		}

		sess, err := openIMAP(ctx, conn, acc)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

// openIMAP logs in over an established connection and selects INBOX
// read-only. conn is closed on failure.
func openIMAP(ctx context.Context, conn net.Conn, acc model.MailAccount) (*imapConn, error) {
	client := imapclient.New(conn, nil)
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })

	if err := client.Login(acc.Email, acc.Password).Wait(); err != nil {
		stop()
		_ = client.Close()
		return nil, connectionError(acc, "login", err)
	}

	selectOpts := &imap.SelectOptions{ReadOnly: true}
	if _, err := client.Select("INBOX", selectOpts).Wait(); err != nil {
		stop()
		_ = client.Logout().Wait()
		_ = client.Close()
		return nil, connectionError(acc, "select INBOX", err)
	}

	return &imapConn{client: client, stop: stop}, nil
}

// SearchFrom returns the UIDs of messages whose From header contains
// sender.
func (c *imapConn) SearchFrom(
	_ context.Context, sender string,
) ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: sender},
		},
	}

	searchData, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages from %s: %w", sender, err)
	}

	uids := searchData.AllUIDs()
	out := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		out = append(out, uint32(uid))
	}
	return out, nil
}

// FetchRaw fetches the full RFC 5322 source of one message without
// setting \Seen.
func (c *imapConn) FetchRaw(
	_ context.Context, uid uint32,
) ([]byte, error) {
	uidSet := imap.UIDSetNum(imap.UID(uid))

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := c.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message UID %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body", uid)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("closing fetch of UID %d: %w", uid, err)
	}

	return raw, nil
}

// Close logs out and releases the connection.
func (c *imapConn) Close() error {
	c.stop()
	err := c.client.Logout().Wait()
	if closeErr := c.client.Close(); err == nil {
		err = closeErr
	}
	return err
}
