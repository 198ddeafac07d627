package notify

import (
	"context"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	addr string
	from string
	to   []string
	msg  string
}

func writeReport(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	html := filepath.Join(dir, "daily_report_20240607.html")
	pdf := filepath.Join(dir, "daily_report_20240607.pdf")
	require.NoError(t, os.WriteFile(html, []byte("<html>리포트</html>"), 0644))
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.3"), 0644))
	return html, pdf
}

func TestMailer_SkipsWithoutRecipients(t *testing.T) {
	m := NewMailer(Config{Host: "smtp.example.com"}, zerolog.Nop())
	called := false
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	assert.False(t, m.Enabled())
	require.NoError(t, m.Send(context.Background(), Report{HTMLPath: "/does/not/exist"}))
	assert.False(t, called)
}

func TestMailer_SendsPerRecipient(t *testing.T) {
	html, pdf := writeReport(t)
	m := NewMailer(Config{
		Host:       "smtp.example.com",
		Port:       587,
		Username:   "bot",
		Password:   "secret",
		From:       "bot@example.com",
		Recipients: []string{"a@example.com", "b@example.com"},
	}, zerolog.Nop())

	var got []sent
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		got = append(got, sent{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}

	err := m.Send(context.Background(), Report{
		Date:       time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC),
		HTMLPath:   html,
		PDFPath:    pdf,
		Highlights: []string{"반도체 관련주 강세"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "smtp.example.com:587", got[0].addr)
	assert.Equal(t, "bot@example.com", got[0].from)
	assert.Equal(t, []string{"a@example.com"}, got[0].to)
	assert.Equal(t, []string{"b@example.com"}, got[1].to)

	msg := got[0].msg
	assert.Contains(t, msg, "To: a@example.com\r\n")
	assert.Contains(t, msg, "Subject: =?UTF-8?b?")
	assert.Contains(t, msg, "multipart/mixed")
	assert.Contains(t, msg, `filename="daily_report_20240607.pdf"`)
	for _, line := range strings.Split(msg, "\r\n") {
		assert.LessOrEqual(t, len(line), 998)
	}
}

func TestMailer_PartialFailure(t *testing.T) {
	html, _ := writeReport(t)
	m := NewMailer(Config{
		Host:       "smtp.example.com",
		Port:       25,
		From:       "bot@example.com",
		Recipients: []string{"ok@example.com", "bad@example.com"},
	}, zerolog.Nop())

	delivered := 0
	m.send = func(_ string, _ smtp.Auth, _ string, to []string, _ []byte) error {
		if to[0] == "bad@example.com" {
			return errors.New("mailbox unavailable")
		}
		delivered++
		return nil
	}

	err := m.Send(context.Background(), Report{Date: time.Now(), HTMLPath: html})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad@example.com")
	assert.Equal(t, 1, delivered)
}

func TestMailer_NotConfigured(t *testing.T) {
	m := NewMailer(Config{Recipients: []string{"a@example.com"}}, zerolog.Nop())
	err := m.Send(context.Background(), Report{})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "한국 증시 데일리 리포트 - 2024년 06월 07일", Subject(time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)))
}
