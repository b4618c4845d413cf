package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/household-bot/internal/access"
	"github.com/nhle/household-bot/internal/accounts"
	"github.com/nhle/household-bot/internal/mailbox"
	"github.com/nhle/household-bot/internal/model"
	"github.com/nhle/household-bot/tests/testutil"
)

const (
	testAdmin int64 = 1
	member    int64 = 42
	stranger  int64 = 77
)

type fakeRetriever struct {
	mu      sync.Mutex
	results []mailbox.Result
	err     error
	calls   []string
}

func (f *fakeRetriever) Fetch(_ context.Context, acc model.MailAccount) ([]mailbox.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, acc.Email)
	return f.results, f.err
}

func (f *fakeRetriever) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type harness struct {
	machine   *Machine
	registry  *access.Registry
	directory *accounts.Directory
	retriever *fakeRetriever
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop().Sugar()
	s := testutil.NewTestStore(t)

	registry := access.NewRegistry(testAdmin, s, log)
	directory := accounts.NewDirectory(s, nil)
	retriever := &fakeRetriever{}

	ctx := context.Background()
	require.Nil(t, registry.Grant(ctx, member, nil))
	require.Nil(t, directory.Save(ctx, model.MailAccount{
		Email: "shared@example.com", Password: "pw",
		Protocol: model.ProtocolIMAP, Host: "imap.example.com", Port: 993,
	}))

	return &harness{
		machine:   NewMachine(registry, directory, retriever, NewAdmin(registry, directory, log), log),
		registry:  registry,
		directory: directory,
		retriever: retriever,
	}
}

func (h *harness) send(userID int64, text string) []Reply {
	return h.machine.Handle(context.Background(), userID, text)
}

func onlyText(t *testing.T, replies []Reply) string {
	t.Helper()
	require.Len(t, replies, 1)
	return replies[0].Text
}

func TestStartOffersButtons(t *testing.T) {
	h := newHarness(t)

	replies := h.send(member, "/start")
	require.Len(t, replies, 1)
	require.Equal(t, msgGreeting, replies[0].Text)
	require.Equal(t, []string{"Yes", "Exit"}, replies[0].Buttons)
	require.Equal(t, StateAwaitingConfirmation, h.machine.State(member))
}

func TestYesFromIdleStartsFlow(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, msgGreeting, onlyText(t, h.send(member, "yes")))
	require.Equal(t, StateAwaitingConfirmation, h.machine.State(member))
}

func TestIdleIgnoresOtherText(t *testing.T) {
	h := newHarness(t)

	require.Empty(t, h.send(member, "hello there"))
	require.Equal(t, StateIdle, h.machine.State(member))
}

func TestFullFlowDeliversLinks(t *testing.T) {
	h := newHarness(t)
	h.retriever.results = []mailbox.Result{
		{ID: 9, Subject: "Update your household", Links: []string{"https://www.netflix.com/account/update-primary-location?nftoken=AAA"}},
		{ID: 4, Subject: "Travel", Links: []string{"https://www.netflix.com/account/travel/verify?nftoken=BBB", "https://www.netflix.com/account/travel/verify?nftoken=CCC"}},
	}

	h.send(member, "/start")
	require.Equal(t, msgAskMailbox, onlyText(t, h.send(member, "Yes")))
	require.Equal(t, StateAwaitingMailboxID, h.machine.State(member))

	text := onlyText(t, h.send(member, "shared@example.com"))
	require.Equal(t, strings.Join([]string{
		"📬 Results for shared@example.com",
		"🔗 https://www.netflix.com/account/update-primary-location?nftoken=AAA",
		"— — — — —",
		"🔗 https://www.netflix.com/account/travel/verify?nftoken=BBB",
		"🔗 https://www.netflix.com/account/travel/verify?nftoken=CCC",
		"— — — — —",
	}, "\n"), text)
	require.Equal(t, []string{"shared@example.com"}, h.retriever.Calls())
	require.Equal(t, StateIdle, h.machine.State(member))
}

func TestConfirmationOtherTextCancels(t *testing.T) {
	h := newHarness(t)

	h.send(member, "/start")
	replies := h.send(member, "maybe")
	require.Equal(t, msgCancelled, onlyText(t, replies))
	require.True(t, replies[0].RemoveButtons)
	require.Equal(t, StateIdle, h.machine.State(member))
}

func TestInvalidMailboxReprompts(t *testing.T) {
	h := newHarness(t)

	h.send(member, "/start")
	h.send(member, "yes")
	require.Equal(t, msgInvalidMailbox, onlyText(t, h.send(member, "not-an-email")))
	require.Equal(t, StateAwaitingMailboxID, h.machine.State(member))
	require.Empty(t, h.retriever.Calls())
}

func TestUnknownMailbox(t *testing.T) {
	h := newHarness(t)

	h.send(member, "/start")
	h.send(member, "yes")
	require.Equal(t, msgUnknownMailbox, onlyText(t, h.send(member, "nobody@example.com")))
	require.Equal(t, StateIdle, h.machine.State(member))
	require.Empty(t, h.retriever.Calls())
}

func TestRetrievalFailure(t *testing.T) {
	h := newHarness(t)
	h.retriever.err = &mailbox.ConnectionError{
		Account: "shared@example.com", Protocol: model.ProtocolIMAP, Op: "login",
		Err: errors.New("authentication failed"),
	}

	h.send(member, "/start")
	h.send(member, "yes")
	require.Equal(t, msgMailboxFailed, onlyText(t, h.send(member, "shared@example.com")))
	require.Equal(t, StateIdle, h.machine.State(member))
}

func TestNothingFound(t *testing.T) {
	h := newHarness(t)
	h.retriever.results = []mailbox.Result{}

	h.send(member, "/start")
	h.send(member, "yes")
	require.Equal(t, msgNothingFound, onlyText(t, h.send(member, "shared@example.com")))
}

func TestExitOverridesAnyState(t *testing.T) {
	h := newHarness(t)

	for _, word := range []string{"exit", "Exit", "CANCEL"} {
		h.send(member, "/start")
		h.send(member, "yes")
		require.Equal(t, StateAwaitingMailboxID, h.machine.State(member))

		replies := h.send(member, word)
		require.Equal(t, msgExited, onlyText(t, replies))
		require.True(t, replies[0].RemoveButtons)
		require.Equal(t, StateIdle, h.machine.State(member))
	}
}

func TestRestartResetsFlow(t *testing.T) {
	h := newHarness(t)

	h.send(member, "/start")
	h.send(member, "yes")
	require.Equal(t, msgGreeting, onlyText(t, h.send(member, "/start")))
	require.Equal(t, StateAwaitingConfirmation, h.machine.State(member))
}

func TestUnapprovedUserRejected(t *testing.T) {
	h := newHarness(t)

	for _, text := range []string{"/start", "yes", "shared@example.com"} {
		require.Equal(t, msgNotApproved, onlyText(t, h.send(stranger, text)))
	}
	require.Equal(t, StateIdle, h.machine.State(stranger))
	require.Empty(t, h.retriever.Calls())
}

func TestRevokedUserLosesAccessMidFlow(t *testing.T) {
	h := newHarness(t)

	h.send(member, "/start")
	h.send(member, "yes")
	require.Nil(t, h.registry.Revoke(context.Background(), member))

	require.Equal(t, msgNotApproved, onlyText(t, h.send(member, "shared@example.com")))
	require.Empty(t, h.retriever.Calls())
}

func TestAdminCanUseFlowWithoutApproval(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, msgGreeting, onlyText(t, h.send(testAdmin, "/start")))
}

func TestStatesAreIndependentPerUser(t *testing.T) {
	h := newHarness(t)
	require.Nil(t, h.registry.Grant(context.Background(), 43, nil))

	h.send(member, "/start")
	h.send(member, "yes")
	h.send(43, "/start")

	require.Equal(t, StateAwaitingMailboxID, h.machine.State(member))
	require.Equal(t, StateAwaitingConfirmation, h.machine.State(43))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text    string
		command string
		args    []string
	}{
		{"/start", "/start", []string{}},
		{"/Start@HouseholdBot", "/start", []string{}},
		{"/approve 42 2026-12-31", "/approve", []string{"42", "2026-12-31"}},
		{"yes", "", nil},
		{"", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			command, args := parseCommand(tt.text)
			require.Equal(t, tt.command, command)
			require.Equal(t, tt.args, args)
		})
	}
}
