package email

import (
	"bufio"
	"context"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/internal/config"
)

// smtpStub accepts one plain SMTP session and records the envelope and data.
type smtpStub struct {
	ln   net.Listener
	wg   sync.WaitGroup
	from string
	rcpt []string
	data string
}

func startSMTPStub(t *testing.T) *smtpStub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &smtpStub{ln: ln}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *smtpStub) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *smtpStub) serve() {
	defer s.wg.Done()
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 stub ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			_ = tp.PrintfLine("250-stub")
			_ = tp.PrintfLine("250 8BITMIME")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			s.from = strings.Trim(line[len("MAIL FROM:"):], "<> ")
			if i := strings.Index(s.from, ">"); i >= 0 {
				s.from = s.from[:i]
			}
			_ = tp.PrintfLine("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.rcpt = append(s.rcpt, strings.Trim(line[len("RCPT TO:"):], "<> "))
			_ = tp.PrintfLine("250 ok")
		case cmd == "DATA":
			_ = tp.PrintfLine("354 go ahead")
			r := bufio.NewReader(tp.DotReader())
			var sb strings.Builder
			_, _ = r.WriteTo(&sb)
			s.data = sb.String()
			_ = tp.PrintfLine("250 queued")
		case cmd == "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func TestSender_SendPlainSMTP(t *testing.T) {
	stub := startSMTPStub(t)
	s := NewSender(config.EmailConfig{
		Host: "127.0.0.1",
		Port: stub.port(),
		From: "noreply@example.com",
	})

	err := s.Send(context.Background(), Message{
		To:      "a@x.com",
		Subject: "Confirm your Account!",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)

	_ = stub.ln.Close()
	stub.wg.Wait()

	assert.Equal(t, "noreply@example.com", stub.from)
	assert.Equal(t, []string{"a@x.com"}, stub.rcpt)
	assert.Contains(t, stub.data, "Subject: Confirm your Account!")
	assert.Contains(t, stub.data, "multipart/alternative")
	assert.Contains(t, stub.data, "plain body")
	assert.Contains(t, stub.data, "<p>html body</p>")
	assert.Less(t, strings.Index(stub.data, "text/plain"), strings.Index(stub.data, "text/html"))
}

func TestSender_NotConfigured(t *testing.T) {
	s := NewSender(config.EmailConfig{})
	err := s.Send(context.Background(), Message{To: "a@x.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuildMessage_EncodesSubject(t *testing.T) {
	body, err := buildMessage(Message{From: "f@x.com", To: "t@x.com", Subject: "Bestätigen Sie Ihr Konto!", Text: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "Subject: =?utf-8?q?")
	assert.NotContains(t, string(body), "text/html")
	assert.Contains(t, string(body), "Content-Type: multipart/alternative; boundary=")
}
