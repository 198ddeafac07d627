// Package notify mails the finished daily report to the configured recipients.
package notify

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned when sending is attempted without SMTP settings
var ErrNotConfigured = errors.New("smtp not configured")

// Config holds SMTP settings
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// Report is what gets mailed for one date
type Report struct {
	Date       time.Time
	HTMLPath   string
	PDFPath    string // optional attachment
	Highlights []string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends the report e-mail, one message per recipient
type Mailer struct {
	cfg  Config
	send sendFunc
	now  func() time.Time
	log  zerolog.Logger
}

// NewMailer creates a mailer. smtp.SendMail upgrades to STARTTLS when the
// server offers it.
func NewMailer(cfg Config, log zerolog.Logger) *Mailer {
	return &Mailer{
		cfg:  cfg,
		send: smtp.SendMail,
		now:  time.Now,
		log:  log.With().Str("service", "mailer").Logger(),
	}
}

// Enabled reports whether there is anyone to mail
func (m *Mailer) Enabled() bool {
	return len(m.cfg.Recipients) > 0
}

// Send mails the report to every recipient. With no recipients it does
// nothing. Per-recipient failures are joined into the returned error.
func (m *Mailer) Send(ctx context.Context, r Report) error {
	if !m.Enabled() {
		m.log.Debug().Msg("No recipients configured, skipping e-mail")
		return nil
	}
	if m.cfg.Host == "" || m.cfg.From == "" {
		return ErrNotConfigured
	}

	html, err := os.ReadFile(r.HTMLPath)
	if err != nil {
		return fmt.Errorf("failed to read html report: %w", err)
	}

	var pdf []byte
	if r.PDFPath != "" {
		if pdf, err = os.ReadFile(r.PDFPath); err != nil {
			m.log.Warn().Err(err).Msg("PDF attachment unavailable, sending HTML only")
			pdf = nil
		}
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var errs []error
	sent := 0
	for _, to := range m.cfg.Recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg := m.buildMessage(to, r, string(html), pdf)
		if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
			m.log.Error().Err(err).Str("recipient", to).Msg("Failed to send report e-mail")
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
			continue
		}
		sent++
		m.log.Info().Str("recipient", to).Msg("Report e-mail sent")
	}

	m.log.Info().Int("sent", sent).Int("recipients", len(m.cfg.Recipients)).Msg("Report mail-out finished")
	return errors.Join(errs...)
}

// Subject returns the mail subject for date
func Subject(date time.Time) string {
	return fmt.Sprintf("한국 증시 데일리 리포트 - %d년 %02d월 %02d일", date.Year(), int(date.Month()), date.Day())
}

func (m *Mailer) buildMessage(to string, r Report, html string, pdf []byte) []byte {
	mixed := boundary()
	alt := boundary()

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", Subject(r.Date)))
	fmt.Fprintf(&msg, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", mixed)

	fmt.Fprintf(&msg, "--%s\r\n", mixed)
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", alt)

	writePart(&msg, alt, "text/plain; charset=\"UTF-8\"", m.textSummary(r))
	writePart(&msg, alt, "text/html; charset=\"UTF-8\"", html)
	fmt.Fprintf(&msg, "--%s--\r\n", alt)

	if len(pdf) > 0 {
		name := filepath.Base(r.PDFPath)
		fmt.Fprintf(&msg, "--%s\r\n", mixed)
		fmt.Fprintf(&msg, "Content-Type: application/pdf; name=\"%s\"\r\n", name)
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&msg, "Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", name)
		msg.WriteString(encodeBase64Lines(pdf))
		msg.WriteString("\r\n")
	}

	fmt.Fprintf(&msg, "--%s--\r\n", mixed)
	return []byte(msg.String())
}

func (m *Mailer) textSummary(r Report) string {
	var b strings.Builder
	b.WriteString(Subject(r.Date))
	b.WriteString("\n\n오늘의 한국 주식시장 분석 보고서를 보내드립니다.\n")
	if len(r.Highlights) > 0 {
		b.WriteString("\n주요 하이라이트:\n")
		for _, h := range r.Highlights {
			b.WriteString("- " + h + "\n")
		}
	}
	b.WriteString("\n※ 본 보고서는 공개된 시장 데이터를 기반으로 자동 생성되었으며 투자 판단의 참고용으로만 활용하시기 바랍니다.\n")
	fmt.Fprintf(&b, "\n생성 시간: %s\n", m.now().Format("2006-01-02 15:04:05"))
	return b.String()
}

func writePart(msg *strings.Builder, boundary, contentType, body string) {
	fmt.Fprintf(msg, "--%s\r\n", boundary)
	fmt.Fprintf(msg, "Content-Type: %s\r\n", contentType)
	msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	msg.WriteString(encodeBase64Lines([]byte(body)))
	msg.WriteString("\r\n")
}

func boundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "daily_report_boundary"
	}
	return fmt.Sprintf("daily_report_%x", b)
}

// encodeBase64Lines wraps base64 at 76 characters (RFC 2045)
func encodeBase64Lines(content []byte) string {
	encoded := base64.StdEncoding.EncodeToString(content)
	const lineLen = 76

	var out strings.Builder
	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		out.WriteString(encoded[i:end])
		if end < len(encoded) {
			out.WriteString("\r\n")
		}
	}
	return out.String()
}
