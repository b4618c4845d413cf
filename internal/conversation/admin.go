package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/household-bot/internal/model"
	"github.com/nhle/household-bot/internal/store"
)

// ApprovalManager is the admin's view of the access registry.
type ApprovalManager interface {
	IsAdmin(userID int64) bool
	Grant(ctx context.Context, userID int64, expiry *time.Time) error
	Revoke(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]model.ApprovalEntry, error)
}

// AccountManager is the admin's view of the mail account directory.
type AccountManager interface {
	Save(ctx context.Context, acc model.MailAccount) error
	Delete(ctx context.Context, email string) error
	List(ctx context.Context) ([]store.AccountSummary, error)
}

type adminCommand func(a *Admin, ctx context.Context, args []string) []Reply

// Admin runs the slash commands reserved for the admin identity.
type Admin struct {
	approvals ApprovalManager
	accounts  AccountManager
	log       *zap.SugaredLogger
	commands  map[string]adminCommand
}

// NewAdmin creates the admin command handler.
func NewAdmin(approvals ApprovalManager, accts AccountManager, log *zap.SugaredLogger) *Admin {
	return &Admin{
		approvals: approvals,
		accounts:  accts,
		log:       log,
		commands: map[string]adminCommand{
			"/approve":   (*Admin).approve,
			"/unapprove": (*Admin).unapprove,
			"/approved":  (*Admin).listApproved,
			"/add":       (*Admin).addAccount,
			"/del":       (*Admin).deleteAccount,
			"/list":      (*Admin).listAccounts,
		},
	}
}

// Handles reports whether command is an admin command.
func (a *Admin) Handles(command string) bool {
	_, ok := a.commands[command]
	return ok
}

// IsAdmin reports whether userID may run admin commands.
func (a *Admin) IsAdmin(userID int64) bool {
	return a.approvals.IsAdmin(userID)
}

// Run executes an admin command. Callers must check IsAdmin first.
func (a *Admin) Run(ctx context.Context, command string, args []string) []Reply {
	run, ok := a.commands[command]
	if !ok {
		return nil
	}
	return run(a, ctx, args)
}

func reply(format string, args ...any) []Reply {
	return []Reply{{Text: fmt.Sprintf(format, args...)}}
}

func (a *Admin) failed(command string, err error) []Reply {
	a.log.Errorw("admin command failed", "command", command, "error", err)
	return reply("⚠️ %s failed: %v", command, err)
}

func (a *Admin) approve(ctx context.Context, args []string) []Reply {
	const usage = "Usage: /approve <telegram_id> [YYYY-MM-DD]"
	if len(args) < 1 || len(args) > 2 {
		return reply(usage)
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return reply(usage)
	}

	var expiry *time.Time
	if len(args) == 2 {
		d, err := model.ParseDate(args[1])
		if err != nil {
			return reply(usage)
		}
		expiry = &d
	}

	if err := a.approvals.Grant(ctx, userID, expiry); err != nil {
		return a.failed("/approve", err)
	}
	if expiry != nil {
		return reply("✅ Approved user %d until %s", userID, expiry.Format(model.DateLayout))
	}
	return reply("✅ Approved user %d", userID)
}

func (a *Admin) unapprove(ctx context.Context, args []string) []Reply {
	const usage = "Usage: /unapprove <telegram_id>"
	if len(args) != 1 {
		return reply(usage)
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return reply(usage)
	}

	if err := a.approvals.Revoke(ctx, userID); err != nil {
		return a.failed("/unapprove", err)
	}
	return reply("🗑️ Unapproved user %d", userID)
}

func (a *Admin) listApproved(ctx context.Context, _ []string) []Reply {
	entries, err := a.approvals.List(ctx)
	if err != nil {
		return a.failed("/approved", err)
	}
	if len(entries) == 0 {
		return reply("No approved users yet.")
	}

	lines := []string{"✅ Approved users:"}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("• %d — expires: %s", e.UserID, e.ExpiryString()))
	}
	return []Reply{{Text: strings.Join(lines, "\n")}}
}

func (a *Admin) addAccount(ctx context.Context, args []string) []Reply {
	const usage = "Usage:\n/add <email> <password> <imap|pop3> <server> <port>"
	if len(args) != 5 {
		return reply(usage)
	}
	protocol, err := model.ParseProtocol(args[2])
	if err != nil {
		return reply(usage)
	}
	port, err := strconv.Atoi(args[4])
	if err != nil {
		return reply(usage)
	}

	acc := model.MailAccount{
		Email:    args[0],
		Password: args[1],
		Protocol: protocol,
		Host:     args[3],
		Port:     port,
	}
	if err := acc.Validate(); err != nil {
		return reply(usage)
	}
	if err := a.accounts.Save(ctx, acc); err != nil {
		return a.failed("/add", err)
	}
	return reply("✅ Saved %s (%s %s)", acc.Email, acc.Protocol, acc.Addr())
}

func (a *Admin) deleteAccount(ctx context.Context, args []string) []Reply {
	if len(args) != 1 {
		return reply("Usage:\n/del <email>")
	}
	if err := a.accounts.Delete(ctx, args[0]); err != nil {
		return a.failed("/del", err)
	}
	return reply("🗑️ Deleted %s", args[0])
}

func (a *Admin) listAccounts(ctx context.Context, _ []string) []Reply {
	list, err := a.accounts.List(ctx)
	if err != nil {
		return a.failed("/list", err)
	}
	if len(list) == 0 {
		return reply("📭 Database is empty.")
	}

	lines := []string{"📋 Accounts:"}
	for _, acc := range list {
		lines = append(lines, fmt.Sprintf("• %s — %s:%d", acc.Email, acc.Host, acc.Port))
	}
	return []Reply{{Text: strings.Join(lines, "\n")}}
}
