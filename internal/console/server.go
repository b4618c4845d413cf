// Package console is a line-oriented transport for the conversation
// machine. Each input line is "<user_id> <text>"; each reply line is
// written as "[<user_id>] <text>".
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/household-bot/internal/conversation"
)

// ErrMalformedLine is returned for input that lacks a numeric user id.
var ErrMalformedLine = errors.New("expected \"<user_id> <text>\"")

// Handler processes one inbound message.
type Handler interface {
	Handle(ctx context.Context, userID int64, text string) []conversation.Reply
}

// Server reads requests from an input stream and writes replies to an
// output stream. Every request runs in its own goroutine so a slow mailbox
// never blocks other users.
type Server struct {
	handler        Handler
	out            io.Writer
	log            *zap.SugaredLogger
	requestTimeout time.Duration

	// writeMu keeps reply lines of different requests from interleaving.
	writeMu gosync.Mutex
	wg      gosync.WaitGroup
}

// New creates a Server writing to out. A zero requestTimeout leaves
// requests bounded only by the context passed to Serve.
func New(h Handler, out io.Writer, requestTimeout time.Duration, log *zap.SugaredLogger) *Server {
	return &Server{
		handler:        h,
		out:            out,
		log:            log,
		requestTimeout: requestTimeout,
	}
}

// Serve consumes in until EOF or until ctx is canceled, then waits for
// in-flight requests to finish.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	defer s.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
				default:
				}
				return nil
			}
			s.dispatch(ctx, line)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	userID, text, err := ParseLine(line)
	if err != nil {
		s.log.Warnw("ignoring input line", "line", line, "error", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		reqCtx := ctx
		if s.requestTimeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, s.requestTimeout)
			defer cancel()
		}

		s.write(userID, s.handler.Handle(reqCtx, userID, text))
	}()
}

func (s *Server) write(userID int64, replies []conversation.Reply) {
	if len(replies) == 0 {
		return
	}

	var b strings.Builder
	for _, r := range replies {
		for _, line := range strings.Split(r.Text, "\n") {
			fmt.Fprintf(&b, "[%d] %s\n", userID, line)
		}
		if len(r.Buttons) > 0 {
			fmt.Fprintf(&b, "[%d] (%s)\n", userID, strings.Join(r.Buttons, " | "))
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := io.WriteString(s.out, b.String()); err != nil {
		s.log.Errorw("writing reply", "user_id", userID, "error", err)
	}
}

// ParseLine splits "<user_id> <text>" into its parts. The text may be
// empty.
func ParseLine(line string) (int64, string, error) {
	line = strings.TrimSpace(line)
	idPart, text, _ := strings.Cut(line, " ")

	userID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parsing %q: %w", line, ErrMalformedLine)
	}
	return userID, strings.TrimSpace(text), nil
}
