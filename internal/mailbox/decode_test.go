package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseSinglePart(t *testing.T) {
	raw := crlf(`From: Netflix <Info@Account.Netflix.com>
Subject: Your temporary access
Content-Type: text/plain; charset=utf-8

Visit https://www.netflix.com/account/travel/verify?nftoken=abc
`)

	msg, err := ParseMessage(raw)
	require.Nil(t, err)
	require.Equal(t, "info@account.netflix.com", msg.From)
	require.Equal(t, "Your temporary access", msg.Subject)

	body, ok := msg.Body.(SinglePart)
	require.True(t, ok)
	require.Equal(t, "text/plain", body.MediaType)
	require.Equal(t, "utf-8", body.Charset)
	require.Contains(t, msg.Text(), "nftoken=abc")
}

func TestParseSinglePartWithoutContentType(t *testing.T) {
	raw := crlf(`From: no-reply@account.netflix.com

plain body
`)

	msg, err := ParseMessage(raw)
	require.Nil(t, err)

	body, ok := msg.Body.(SinglePart)
	require.True(t, ok)
	require.Equal(t, "text/plain", body.MediaType)
	require.Contains(t, msg.Text(), "plain body")
}

func TestParseMultipartKeepsTextPartsInOrder(t *testing.T) {
	raw := crlf(`From: info@account.netflix.com
Subject: Update your Netflix Household
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=us-ascii

PLAIN-PART
--inner
Content-Type: text/html; charset=utf-8
Content-Transfer-Encoding: quoted-printable

<a href=3D"https://www.netflix.com/account/update-primary-location?nftoken=Q=
P1">HTML-PART</a>
--inner--
--outer
Content-Type: image/png
Content-Transfer-Encoding: base64

iVBORw0KGgo=
--outer--
`)

	msg, err := ParseMessage(raw)
	require.Nil(t, err)

	body, ok := msg.Body.(MultiPart)
	require.True(t, ok)
	require.Len(t, body.Parts, 2)
	require.Equal(t, "text/plain", body.Parts[0].MediaType)
	require.Equal(t, "text/html", body.Parts[1].MediaType)

	text := msg.Text()
	require.Less(t, strings.Index(text, "PLAIN-PART"), strings.Index(text, "HTML-PART"))
	require.Contains(t, text, "nftoken=QP1")
	require.NotContains(t, text, "iVBORw0KGgo")
}

func TestParseLatin1Charset(t *testing.T) {
	raw := []byte("From: info@account.netflix.com\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"\r\n" +
		"caf\xe9\r\n")

	msg, err := ParseMessage(raw)
	require.Nil(t, err)
	require.Contains(t, msg.Text(), "café")
}

func TestParseUnknownCharsetDropsInvalidBytes(t *testing.T) {
	raw := []byte("From: info@account.netflix.com\r\n" +
		"Content-Type: text/plain; charset=x-made-up\r\n" +
		"\r\n" +
		"ok\xff\xfe link\r\n")

	msg, err := ParseMessage(raw)
	require.Nil(t, err)
	require.Contains(t, msg.Text(), "ok link")
}

func TestParseGarbageHeader(t *testing.T) {
	_, err := ParseMessage([]byte("this is not\x00 a header line without colon\r\n\r\n"))
	require.NotNil(t, err)
}

func TestMessageTextNil(t *testing.T) {
	var msg *Message
	require.Equal(t, "", msg.Text())
}
