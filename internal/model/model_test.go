package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApprovalExpiry(t *testing.T) {
	expiry := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	e := ApprovalEntry{UserID: 1, Expiry: &expiry}

	require.False(t, e.ExpiredOn(time.Date(2026, 10, 16, 23, 59, 0, 0, time.UTC)))
	require.True(t, e.ExpiredOn(time.Date(2026, 10, 17, 0, 0, 1, 0, time.UTC)))
	require.Equal(t, "2026-10-16", e.ExpiryString())

	// 01:00 on the 17th in UTC+2 is still the 16th in UTC.
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	require.False(t, e.ExpiredOn(time.Date(2026, 10, 17, 1, 0, 0, 0, plus2)))

	permanent := ApprovalEntry{UserID: 2}
	require.True(t, permanent.Permanent())
	require.False(t, permanent.ExpiredOn(time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "Never", permanent.ExpiryString())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	require.Nil(t, err)
	require.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("28/02/2026")
	require.NotNil(t, err)
}

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol(" IMAP ")
	require.Nil(t, err)
	require.Equal(t, ProtocolIMAP, p)

	_, err = ParseProtocol("smtp")
	require.NotNil(t, err)
}

func TestMailAccountValidate(t *testing.T) {
	acc := MailAccount{
		Email: "a@example.com", Password: "pw",
		Protocol: ProtocolPOP3, Host: "pop.example.com", Port: 995,
	}
	require.Nil(t, acc.Validate())
	require.Equal(t, "pop.example.com:995", acc.Addr())

	bad := acc
	bad.Password = ""
	require.NotNil(t, bad.Validate())

	bad = acc
	bad.Port = 70000
	require.NotNil(t, bad.Validate())
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte(`
admin_id: 1234
db_file: bot.db
mail:
  session_timeout: 45s
  senders:
    - alerts@example.com
`), 0o600))

	t.Setenv("MAX_EMAILS_CHECK", "5")

	cfg, err := LoadConfig(path)
	require.Nil(t, err)
	require.Equal(t, int64(1234), cfg.AdminID)
	require.Equal(t, "bot.db", cfg.DBFile)
	require.Equal(t, 5, cfg.Mail.MaxCheck)
	require.Equal(t, 45*time.Second, cfg.Mail.SessionTimeout)
	require.Equal(t, 30*time.Second, cfg.Mail.ConnectTimeout)
	require.Equal(t, []string{"alerts@example.com"}, cfg.Mail.Senders)
	require.Equal(t, DefaultLinkPatterns, cfg.Mail.LinkPatterns)
}

func TestLoadConfigMissingFileUsesEnv(t *testing.T) {
	t.Setenv("ADMIN_ID", "99")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Nil(t, err)
	require.Equal(t, int64(99), cfg.AdminID)
	require.Equal(t, 20, cfg.Mail.MaxCheck)
	require.Equal(t, DefaultSenders, cfg.Mail.Senders)
}

func TestLoadConfigRequiresAdmin(t *testing.T) {
	t.Setenv("ADMIN_ID", "")
	t.Setenv("HOUSEHOLD_ADMIN_ID", "")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NotNil(t, err)
}

func TestLoadConfigKeyringNeedsPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte("admin_id: 1\nsecrets:\n  keyring: true\n"), 0o600))

	t.Setenv("KEYRING_PASSPHRASE", "")
	t.Setenv("HOUSEHOLD_KEYRING_PASSPHRASE", "")
	_, err := LoadConfig(path)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "secrets.passphrase")

	t.Setenv("HOUSEHOLD_KEYRING_PASSPHRASE", "s3cret")
	cfg, err := LoadConfig(path)
	require.Nil(t, err)
	require.True(t, cfg.Secrets.Keyring)
	require.Equal(t, "s3cret", cfg.Secrets.Passphrase)
}
