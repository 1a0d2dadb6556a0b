package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"coursemarket_echo/internal/config"
)

const defaultSMTPTimeout = 10 * time.Second

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
	timeout  time.Duration
	send     func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	s := &EmailService{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     from,
		timeout:  defaultSMTPTimeout,
	}
	s.send = s.sendMail
	return s
}

// SendEmail sends an HTML email. It gives up when ctx is done or the SMTP timeout passes.
func (s *EmailService) SendEmail(ctx context.Context, to []string, subject, htmlBody string) error {
	if s.host == "" || s.port == "" || s.user == "" || s.password == "" {
		return fmt.Errorf("SMTP credentials not fully configured")
	}
	if len(to) == 0 || to[0] == "" {
		return fmt.Errorf("no recipient")
	}

	auth := smtp.PlainAuth("", s.user, s.password, s.host)
	addr := net.JoinHostPort(s.host, s.port)

	if err := s.send(ctx, addr, auth, s.from, to, buildMessage(s.from, to, subject, htmlBody)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// sendMail is smtp.SendMail with a deadline on the whole conversation.
func (s *EmailService) sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return withContextErr(ctx, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return withContextErr(ctx, err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok && a != nil {
		if err := c.Auth(a); err != nil {
			return withContextErr(ctx, err)
		}
	}
	if err := c.Mail(from); err != nil {
		return withContextErr(ctx, err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return withContextErr(ctx, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return withContextErr(ctx, err)
	}
	if _, err := w.Write(msg); err != nil {
		return withContextErr(ctx, err)
	}
	if err := w.Close(); err != nil {
		return withContextErr(ctx, err)
	}
	return withContextErr(ctx, c.Quit())
}

// withContextErr reports the deadline instead of the "use of closed connection" it causes.
func withContextErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}

func buildMessage(from string, to []string, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}
