// Package mailbox reads recent household emails from IMAP and POP3
// mailboxes and extracts their verification links.
package mailbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/household-bot/internal/extract"
	"github.com/nhle/household-bot/internal/model"
)

// DefaultMaxCheck is the number of messages scanned when Options.MaxCheck
// is not set.
const DefaultMaxCheck = 20

// Result holds the links found in one scanned message.
type Result struct {
	// ID is the IMAP UID or POP3 message number of the source message.
	ID      uint32
	Subject string
	Links   []string
}

// imapSession is an authenticated IMAP session with INBOX selected
// read-only.
type imapSession interface {
	SearchFrom(ctx context.Context, sender string) ([]uint32, error)
	FetchRaw(ctx context.Context, uid uint32) ([]byte, error)
	Close() error
}

// pop3Session is an authenticated POP3 session.
type pop3Session interface {
	Count() (int, error)
	Retrieve(n int) ([]byte, error)
	Close() error
}

type (
	imapDialer func(ctx context.Context, acc model.MailAccount) (imapSession, error)
	pop3Dialer func(ctx context.Context, acc model.MailAccount) (pop3Session, error)
)

// Options configures an Engine.
type Options struct {
	// Senders is the allow-list of household email senders.
	Senders []string

	// MaxCheck bounds the number of messages scanned per retrieval.
	MaxCheck int

	ConnectTimeout time.Duration
	SessionTimeout time.Duration
}

// Engine retrieves household links from mailboxes. It holds no
// per-retrieval state and is safe for concurrent use.
type Engine struct {
	extractor *extract.Extractor
	senders   []string
	senderSet map[string]struct{}
	maxCheck  int
	log       *zap.SugaredLogger

	dialIMAP imapDialer
	dialPOP3 pop3Dialer
}

// NewEngine creates an Engine that dials real IMAP and POP3 servers over
// TLS.
func NewEngine(
	ext *extract.Extractor,
	opts Options,
	log *zap.SugaredLogger,
) *Engine {
	maxCheck := opts.MaxCheck
	if maxCheck < 1 {
		maxCheck = DefaultMaxCheck
	}

	senders := make([]string, 0, len(opts.Senders))
	senderSet := make(map[string]struct{}, len(opts.Senders))
	for _, s := range opts.Senders {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := senderSet[s]; dup {
			continue
		}
		senderSet[s] = struct{}{}
		senders = append(senders, s)
	}

	return &Engine{
		extractor: ext,
		senders:   senders,
		senderSet: senderSet,
		maxCheck:  maxCheck,
		log:       log,
		dialIMAP:  newIMAPDialer(opts.ConnectTimeout, opts.SessionTimeout),
		dialPOP3:  newPOP3Dialer(opts.ConnectTimeout, true),
	}
}

// Fetch scans the recent messages of acc from the allowed senders and
// returns one Result per message that contributed at least one new link.
// An error is returned only when no session could be established; such
// errors satisfy IsConnectionError.
func (e *Engine) Fetch(
	ctx context.Context,
	acc model.MailAccount,
) ([]Result, error) {
	log := e.log.With(
		"trace_id", uuid.New().String(),
		"account", acc.Email,
		"protocol", acc.Protocol,
	)
	start := time.Now()

	var (
		results []Result
		err     error
	)
	switch acc.Protocol {
	case model.ProtocolIMAP:
		results, err = e.fetchIMAP(ctx, acc, log)
	case model.ProtocolPOP3:
		results, err = e.fetchPOP3(ctx, acc, log)
	default:
		err = connectionError(acc, "connect",
			fmt.Errorf("unsupported protocol %q", acc.Protocol))
	}
	if err != nil {
		log.Warnw("mailbox retrieval failed", "error", err)
		return nil, err
	}

	log.Infow("mailbox retrieval finished",
		"messages_with_links", len(results),
		"elapsed", time.Since(start),
	)
	return results, nil
}

// fetchIMAP runs one server-side search per sender, then fetches the
// newest matches one by one.
func (e *Engine) fetchIMAP(
	ctx context.Context,
	acc model.MailAccount,
	log *zap.SugaredLogger,
) ([]Result, error) {
	sess, err := e.dialIMAP(ctx, acc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Debugw("imap logout failed", "error", err)
		}
	}()

	ids := make(map[uint32]struct{})
	for _, sender := range e.senders {
		found, err := sess.SearchFrom(ctx, sender)
		if err != nil {
			log.Debugw("imap sender search failed", "sender", sender, "error", err)
			continue
		}
		for _, id := range found {
			ids[id] = struct{}{}
		}
	}

	collector := e.extractor.NewCollector()
	var results []Result
	for _, id := range newestIDs(ids, e.maxCheck) {
		if err := ctx.Err(); err != nil {
			return nil, connectionError(acc, "fetch", err)
		}

		raw, err := sess.FetchRaw(ctx, id)
		if err != nil {
			log.Debugw("skipping message", "id", id, "error", err)
			continue
		}
		if r, ok := e.scan(id, raw, collector, false, log); ok {
			results = append(results, r)
		}
	}

	return results, nil
}

// fetchPOP3 retrieves the trailing window of the mailbox and filters by
// sender client-side, since POP3 has no search.
func (e *Engine) fetchPOP3(
	ctx context.Context,
	acc model.MailAccount,
	log *zap.SugaredLogger,
) ([]Result, error) {
	sess, err := e.dialPOP3(ctx, acc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Debugw("pop3 quit failed", "error", err)
		}
	}()

	total, err := sess.Count()
	if err != nil {
		return nil, connectionError(acc, "stat", err)
	}

	first, last := pop3Window(total, e.maxCheck)
	collector := e.extractor.NewCollector()
	var results []Result
	for n := last; n >= first; n-- {
		if err := ctx.Err(); err != nil {
			return nil, connectionError(acc, "retrieve", err)
		}

		raw, err := sess.Retrieve(n)
		if err != nil {
			log.Debugw("skipping message", "id", n, "error", err)
			continue
		}
		if r, ok := e.scan(uint32(n), raw, collector, true, log); ok {
			results = append(results, r)
		}
	}

	return results, nil
}

// scan decodes one raw message and extracts its links. Messages that fail
// to parse are skipped.
func (e *Engine) scan(
	id uint32,
	raw []byte,
	collector *extract.Collector,
	filterSender bool,
	log *zap.SugaredLogger,
) (Result, bool) {
	msg, err := ParseMessage(raw)
	if err != nil {
		log.Debugw("skipping undecodable message", "id", id, "error", err)
		return Result{}, false
	}
	if filterSender && !e.allowedSender(msg.From) {
		return Result{}, false
	}

	links := collector.Add(msg.Text())
	if len(links) == 0 {
		return Result{}, false
	}
	return Result{ID: id, Subject: msg.Subject, Links: links}, true
}

func (e *Engine) allowedSender(addr string) bool {
	_, ok := e.senderSet[strings.ToLower(addr)]
	return ok
}

// newestIDs returns at most limit of the highest ids, highest first.
func newestIDs(ids map[uint32]struct{}, limit int) []uint32 {
	out := make([]uint32, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// pop3Window returns the inclusive message-number range of the last
// min(limit, total) messages. An empty mailbox yields first > last.
func pop3Window(total, limit int) (first, last int) {
	if total <= 0 {
		return 1, 0
	}
	first = total - limit + 1
	if first < 1 {
		first = 1
	}
	return first, total
}
