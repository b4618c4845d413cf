// Package conversation sequences the chat flow that turns a request into
// household links: greeting, confirmation, mailbox id, results.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/household-bot/internal/accounts"
	"github.com/nhle/household-bot/internal/mailbox"
	"github.com/nhle/household-bot/internal/model"
)

// mailboxIDPattern accepts anything shaped like local@domain.tld.
var mailboxIDPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Authorizer gates every non-admin interaction.
type Authorizer interface {
	IsAuthorized(ctx context.Context, userID int64) (bool, error)
}

// AccountLookup resolves a mailbox identifier to its account.
type AccountLookup interface {
	GetAccount(ctx context.Context, email string) (model.MailAccount, error)
}

// Retriever fetches household links from a mailbox.
type Retriever interface {
	Fetch(ctx context.Context, acc model.MailAccount) ([]mailbox.Result, error)
}

// Machine holds the per-requester conversation state. Concurrent messages
// from the same requester are not serialized: whichever transition is
// written last wins.
type Machine struct {
	auth      Authorizer
	accounts  AccountLookup
	retriever Retriever
	admin     *Admin
	log       *zap.SugaredLogger

	mu     sync.Mutex
	states map[int64]State
}

// NewMachine creates a Machine. admin may be nil, in which case admin
// commands are treated as ordinary text.
func NewMachine(
	auth Authorizer,
	lookup AccountLookup,
	retriever Retriever,
	admin *Admin,
	log *zap.SugaredLogger,
) *Machine {
	return &Machine{
		auth:      auth,
		accounts:  lookup,
		retriever: retriever,
		admin:     admin,
		log:       log,
		states:    make(map[int64]State),
	}
}

// State returns the current state of userID.
func (m *Machine) State(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[userID]
}

func (m *Machine) setState(userID int64, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == StateIdle {
		delete(m.states, userID)
		return
	}
	m.states[userID] = s
}

// Handle processes one inbound message from userID and returns the
// replies to send back. It may block for the duration of a mailbox
// retrieval.
func (m *Machine) Handle(ctx context.Context, userID int64, text string) []Reply {
	text = strings.TrimSpace(text)
	command, args := parseCommand(text)

	adminCommand := m.admin != nil && m.admin.Handles(command)
	if adminCommand && m.admin.IsAdmin(userID) {
		return m.admin.Run(ctx, command, args)
	}

	ok, err := m.auth.IsAuthorized(ctx, userID)
	if err != nil {
		m.log.Errorw("authorization check failed", "user_id", userID, "error", err)
		return []Reply{{Text: msgInternalFailure}}
	}
	if !ok {
		return []Reply{{Text: msgNotApproved}}
	}
	if adminCommand {
		// Admin commands from approved non-admins are ignored.
		return nil
	}

	word := strings.ToLower(text)

	switch {
	case command == "/start" || command == "/help":
		return m.start(userID)
	case word == "exit" || word == "cancel":
		m.setState(userID, StateIdle)
		return []Reply{{Text: msgExited, RemoveButtons: true}}
	}

	switch m.State(userID) {
	case StateAwaitingConfirmation:
		if word == "yes" {
			m.setState(userID, StateAwaitingMailboxID)
			return []Reply{{Text: msgAskMailbox, RemoveButtons: true}}
		}
		m.setState(userID, StateIdle)
		return []Reply{{Text: msgCancelled, RemoveButtons: true}}

	case StateAwaitingMailboxID:
		return m.retrieve(ctx, userID, text)

	default:
		if word == "yes" || word == "start" {
			return m.start(userID)
		}
		return nil
	}
}

func (m *Machine) start(userID int64) []Reply {
	m.setState(userID, StateAwaitingConfirmation)
	return []Reply{{Text: msgGreeting, Buttons: startButtons}}
}

// retrieve validates the mailbox id, runs the retrieval, and renders the
// outcome. The requester is back in idle as soon as the id is accepted,
// so a restart issued during a slow retrieval is not overwritten.
func (m *Machine) retrieve(ctx context.Context, userID int64, mailboxID string) []Reply {
	if !mailboxIDPattern.MatchString(mailboxID) {
		return []Reply{{Text: msgInvalidMailbox}}
	}

	acc, err := m.accounts.GetAccount(ctx, mailboxID)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		m.setState(userID, StateIdle)
		return []Reply{{Text: msgUnknownMailbox}}
	}
	if err != nil {
		m.setState(userID, StateIdle)
		m.log.Errorw("account lookup failed", "user_id", userID, "mailbox", mailboxID, "error", err)
		return []Reply{{Text: msgInternalFailure}}
	}

	m.setState(userID, StateIdle)

	results, err := m.retriever.Fetch(ctx, acc)
	if err != nil {
		m.log.Warnw("retrieval failed", "user_id", userID, "mailbox", mailboxID, "error", err)
		return []Reply{{Text: msgMailboxFailed}}
	}
	if len(results) == 0 {
		return []Reply{{Text: msgNothingFound}}
	}

	m.log.Infow("household links delivered",
		"user_id", userID, "mailbox", mailboxID, "messages", len(results))
	return []Reply{{Text: formatResults(mailboxID, results)}}
}

// formatResults renders one line per link and a separator after each
// message's group, preserving the retrieval order.
func formatResults(mailboxID string, results []mailbox.Result) string {
	lines := []string{fmt.Sprintf(resultsHeader, mailboxID)}
	for _, r := range results {
		for _, link := range r.Links {
			lines = append(lines, resultLinePrefix+link)
		}
		lines = append(lines, resultSeparator)
	}
	return strings.Join(lines, "\n")
}

// parseCommand splits "/cmd@bot arg1 arg2" into "/cmd" and its args.
// Text that is not a command yields an empty command.
func parseCommand(text string) (string, []string) {
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	if i := strings.IndexByte(command, '@'); i > 0 {
		command = command[:i]
	}
	return command, fields[1:]
}
