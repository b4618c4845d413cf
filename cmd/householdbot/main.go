package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nhle/household-bot/internal/access"
	"github.com/nhle/household-bot/internal/accounts"
	"github.com/nhle/household-bot/internal/console"
	"github.com/nhle/household-bot/internal/conversation"
	"github.com/nhle/household-bot/internal/credential"
	"github.com/nhle/household-bot/internal/extract"
	"github.com/nhle/household-bot/internal/mailbox"
	"github.com/nhle/household-bot/internal/model"
	"github.com/nhle/household-bot/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional dotenv file")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "householdbot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	log := logger.Sugar()

	s, err := store.NewSQLiteStore(cfg.DBFile)
	if err != nil {
		return err
	}
	defer s.Close()

	var secrets accounts.SecretStore
	if cfg.Secrets.Keyring {
		ring, err := credential.Open(cfg.Secrets.KeyringDir, cfg.Secrets.Passphrase)
		if err != nil {
			return err
		}
		secrets = ring
	}

	ext, err := extract.New(cfg.Mail.LinkPatterns)
	if err != nil {
		return err
	}

	engine := mailbox.NewEngine(ext, mailbox.Options{
		Senders:        cfg.Mail.Senders,
		MaxCheck:       cfg.Mail.MaxCheck,
		ConnectTimeout: cfg.Mail.ConnectTimeout,
		SessionTimeout: cfg.Mail.SessionTimeout,
	}, log.Named("mailbox"))

	registry := access.NewRegistry(cfg.AdminID, s, log.Named("access"))
	directory := accounts.NewDirectory(s, secrets)
	admin := conversation.NewAdmin(registry, directory, log.Named("admin"))
	machine := conversation.NewMachine(registry, directory, engine, admin, log.Named("conversation"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("household bot started",
		"db_file", cfg.DBFile,
		"max_check", cfg.Mail.MaxCheck,
		"keyring", cfg.Secrets.Keyring)

	srv := console.New(machine, os.Stdout,
		cfg.Mail.ConnectTimeout+cfg.Mail.SessionTimeout, log.Named("console"))
	if err := srv.Serve(ctx, os.Stdin); err != nil {
		return err
	}

	log.Info("household bot stopped")
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
