package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Part is one decoded text body of a message.
type Part struct {
	MediaType string
	// Charset is the declared charset, empty if none was given.
	Charset string
	Content string
}

// Body is either a SinglePart or a MultiPart.
type Body interface {
	textParts() []Part
}

// SinglePart is the body of a non-multipart message.
type SinglePart struct {
	Part
}

func (b SinglePart) textParts() []Part {
	return []Part{b.Part}
}

// MultiPart holds the text/plain and text/html leaves of a multipart
// message in structural order.
type MultiPart struct {
	Parts []Part
}

func (b MultiPart) textParts() []Part {
	return b.Parts
}

// Message is a parsed email reduced to what link extraction needs.
type Message struct {
	// From is the lowercased sender address.
	From    string
	Subject string
	Body    Body
}

// Text concatenates the decoded text of every body part, one part per
// line block.
func (m *Message) Text() string {
	if m == nil || m.Body == nil {
		return ""
	}
	parts := m.Body.textParts()
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		texts = append(texts, p.Content)
	}
	return strings.Join(texts, "\n")
}

// ParseMessage parses a raw RFC 5322 message. Only a message whose header
// cannot be read is an error; undecodable parts become empty strings.
func ParseMessage(raw []byte) (*Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if entity == nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	h := mail.Header{Header: entity.Header}
	msg := &Message{From: senderAddress(h)}
	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	}

	mediaType, params, _ := entity.Header.ContentType()
	if strings.HasPrefix(mediaType, "multipart/") {
		var parts []Part
		collectTextParts(entity, &parts)
		msg.Body = MultiPart{Parts: parts}
		return msg, nil
	}

	if mediaType == "" {
		mediaType = "text/plain"
	}
	msg.Body = SinglePart{Part{
		MediaType: mediaType,
		Charset:   params["charset"],
		Content:   readText(entity.Body),
	}}
	return msg, nil
}

// collectTextParts walks the MIME tree depth-first and appends every
// text/plain and text/html leaf.
func collectTextParts(e *message.Entity, out *[]Part) {
	if mr := e.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if p == nil {
				// The remaining parts cannot be framed.
				return
			}
			collectTextParts(p, out)
		}
	}

	mediaType, params, _ := e.Header.ContentType()
	if mediaType != "text/plain" && mediaType != "text/html" {
		return
	}
	*out = append(*out, Part{
		MediaType: mediaType,
		Charset:   params["charset"],
		Content:   readText(e.Body),
	})
}

// readText reads a part body that go-message has already transfer- and
// charset-decoded where it could. Bytes that are still not valid UTF-8
// (unknown charset) are dropped; a read failure yields "".
func readText(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(b), "")
}

// senderAddress returns the lowercased address of the first From mailbox.
func senderAddress(h mail.Header) string {
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		return strings.ToLower(addrs[0].Address)
	}
	// Fall back to a lenient read of the raw header.
	from := h.Get("From")
	if i := strings.LastIndexByte(from, '<'); i >= 0 {
		from = from[i+1:]
		if j := strings.IndexByte(from, '>'); j >= 0 {
			from = from[:j]
		}
	}
	return strings.ToLower(strings.TrimSpace(from))
}
