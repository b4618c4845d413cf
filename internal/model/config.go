package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSenders is the allow-list of addresses household emails are
// sent from.
var DefaultSenders = []string{
	"info@account.netflix.com",
	"no-reply@account.netflix.com",
}

// DefaultLinkPatterns match the household verification endpoints. Each
// requires an nftoken query parameter so one-time numeric codes never
// match.
var DefaultLinkPatterns = []string{
	`(?i)https://www\.netflix\.com/account/update-primary-location\?nftoken=[^\s"'<>]+`,
	`(?i)https://www\.netflix\.com/account/travel/verify\?nftoken=[^\s"'<>]+`,
}

// MailConfig controls how mailboxes are scanned.
type MailConfig struct {
	// MaxCheck is the maximum number of messages examined per retrieval.
	MaxCheck int `mapstructure:"max_check" yaml:"max_check"`

	// ConnectTimeout bounds dialing and the TLS handshake.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	// SessionTimeout bounds a whole IMAP or POP3 session.
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`

	Senders      []string `mapstructure:"senders" yaml:"senders"`
	LinkPatterns []string `mapstructure:"link_patterns" yaml:"link_patterns"`
}

// SecretsConfig selects where mailbox passwords are kept.
type SecretsConfig struct {
	// Keyring stores mailbox passwords in the OS keyring rather than the
	// accounts table.
	Keyring    bool   `mapstructure:"keyring" yaml:"keyring"`
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`

	// Passphrase unlocks the encrypted file backend used on hosts without
	// an OS keyring. Usually supplied as HOUSEHOLD_KEYRING_PASSPHRASE.
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// AdminID is the chat identity that is always authorized and may run
	// admin commands.
	AdminID int64 `mapstructure:"admin_id" yaml:"admin_id"`

	DBFile  string        `mapstructure:"db_file" yaml:"db_file"`
	Mail    MailConfig    `mapstructure:"mail" yaml:"mail"`
	Secrets SecretsConfig `mapstructure:"secrets" yaml:"secrets"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// envBindings maps config keys to the bare environment variable names
// deployments already use.
var envBindings = map[string]string{
	"admin_id":       "ADMIN_ID",
	"db_file":        "DB_FILE",
	"mail.max_check": "MAX_EMAILS_CHECK",

	"secrets.passphrase": "KEYRING_PASSPHRASE",
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DBFile: "accounts.db",
		Mail: MailConfig{
			MaxCheck:       20,
			ConnectTimeout: 30 * time.Second,
			SessionTimeout: 2 * time.Minute,
			Senders:        append([]string(nil), DefaultSenders...),
			LinkPatterns:   append([]string(nil), DefaultLinkPatterns...),
		},
		Secrets: SecretsConfig{
			KeyringDir: "~/.config/householdbot/credentials",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// layering HOUSEHOLD_* environment variables on top. A missing file is not
// an error; defaults and the environment still apply.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("household")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("admin_id", 0)
	v.SetDefault("db_file", def.DBFile)
	v.SetDefault("mail.max_check", def.Mail.MaxCheck)
	v.SetDefault("mail.connect_timeout", def.Mail.ConnectTimeout)
	v.SetDefault("mail.session_timeout", def.Mail.SessionTimeout)
	v.SetDefault("mail.senders", def.Mail.Senders)
	v.SetDefault("mail.link_patterns", def.Mail.LinkPatterns)
	v.SetDefault("secrets.keyring", false)
	v.SetDefault("secrets.keyring_dir", def.Secrets.KeyringDir)
	v.SetDefault("secrets.passphrase", "")
	v.SetDefault("log.debug", false)

	for key, env := range envBindings {
		if err := v.BindEnv(key, "HOUSEHOLD_"+env, env); err != nil {
			return nil, fmt.Errorf("binding env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the bot cannot run without.
func (c *AppConfig) Validate() error {
	if c.AdminID == 0 {
		return fmt.Errorf("admin_id must be set (ADMIN_ID)")
	}
	if c.Mail.MaxCheck <= 0 {
		return fmt.Errorf("mail.max_check must be positive, got %d", c.Mail.MaxCheck)
	}
	if len(c.Mail.Senders) == 0 {
		return fmt.Errorf("mail.senders must not be empty")
	}
	if len(c.Mail.LinkPatterns) == 0 {
		return fmt.Errorf("mail.link_patterns must not be empty")
	}
	if c.Secrets.Keyring && c.Secrets.Passphrase == "" {
		return fmt.Errorf("secrets.passphrase must be set when secrets.keyring is enabled (HOUSEHOLD_KEYRING_PASSPHRASE)")
	}
	return nil
}
