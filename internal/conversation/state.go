package conversation

// State is where a requester is in the link request flow.
type State int

const (
	StateIdle State = iota
	StateAwaitingConfirmation
	StateAwaitingMailboxID
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateAwaitingMailboxID:
		return "awaiting_mailbox_id"
	default:
		return "unknown"
	}
}

// Reply is one outbound message. The transport decides how to render it.
type Reply struct {
	Text string

	// Buttons are quick-reply options offered alongside the text.
	Buttons []string

	// RemoveButtons asks the transport to clear previously offered
	// buttons.
	RemoveButtons bool
}

// User-visible texts.
const (
	msgGreeting = "Hi, Household Bot this side\n" +
		"Looks like you have faced an household issue on your OTT platform " +
		"(Enter Yes/yes to get the link or Exit/exit to exit)"
	msgNotApproved     = "❌ You are not approved to use this bot.\nPlease contact the admin."
	msgAskMailbox      = "Enter the mail ID"
	msgCancelled       = "Okay. Type /start anytime to try again."
	msgExited          = "Exited. Type /start whenever you need me."
	msgInvalidMailbox  = "That doesn't look like a valid email. Please send a correct mail ID."
	msgUnknownMailbox  = "❌ This mail ID is not in the database. Please contact admin."
	msgMailboxFailed   = "⚠️ Couldn't read the mailbox right now. Please try again later."
	msgNothingFound    = "❌ No household emails found recently. Try again later."
	msgInternalFailure = "⚠️ Something went wrong. Please try again later."
	resultsHeader      = "📬 Results for %s"
	resultLinePrefix   = "🔗 "
	resultSeparator    = "— — — — —"
)

var startButtons = []string{"Yes", "Exit"}
