package emailsvc

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/trezcool/dormportal/core"
)

const smtpDialTimeout = 10 * time.Second

type smtpService struct {
	host   string
	from   mail.Address
	dialer *gomail.Dialer
	plain  *plainSender // set when SMTP_USE_TLS is off; the connection is never upgraded
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(conf *core.Config) *smtpService {
	d := gomail.NewDialer(conf.Email.SMTPHost, conf.Email.SMTPPort, conf.Email.SMTPUsername, conf.Email.SMTPPassword)
	d.SSL = conf.Email.SMTPUseTLS && conf.Email.SMTPPort == 465 // implicit TLS; other ports upgrade with STARTTLS
	d.TLSConfig = &tls.Config{ServerName: conf.Email.SMTPHost, MinVersion: tls.VersionTLS12}
	svc := &smtpService{
		host:   conf.Email.SMTPHost,
		from:   conf.DefaultFromEmail(),
		dialer: d,
	}
	if !conf.Email.SMTPUseTLS {
		svc.plain = &plainSender{
			addr:     net.JoinHostPort(conf.Email.SMTPHost, strconv.Itoa(conf.Email.SMTPPort)),
			host:     conf.Email.SMTPHost,
			username: conf.Email.SMTPUsername,
			password: conf.Email.SMTPPassword,
		}
	}
	return svc
}

func (svc *smtpService) CheckConfig() error {
	if svc.host == "" || svc.from.Address == "" {
		return core.ErrMailNotConfigured
	}
	return nil
}

func (svc *smtpService) prepare(msg *core.EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", svc.from.Address, svc.from.Name)
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, m.FormatAddress(addr.Address, addr.Name))
	}
	m.SetHeader("To", to...)
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.TextContent != "" && msg.HTMLContent != "":
		m.SetBody("text/plain", msg.TextContent)
		m.AddAlternative("text/html", msg.HTMLContent)
	case msg.HTMLContent != "":
		m.SetBody("text/html", msg.HTMLContent)
	default:
		m.SetBody("text/plain", msg.TextContent)
	}
	return m
}

func (svc *smtpService) Send(ctx context.Context, msg *core.EmailMessage) error {
	if err := svc.CheckConfig(); err != nil {
		return err
	}
	if err := checkMessage(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if svc.plain != nil {
		return errors.Wrap(svc.plain.send(ctx, svc.prepare(msg)), "sending email over smtp")
	}
	return errors.Wrap(svc.dialer.DialAndSend(svc.prepare(msg)), "sending email over smtp")
}

// plainSender speaks SMTP without STARTTLS. gomail.Dialer upgrades whenever the server offers it.
type plainSender struct {
	addr     string
	host     string
	username string
	password string
}

func (ps *plainSender) send(ctx context.Context, m *gomail.Message) error {
	return gomail.Send(gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		return ps.deliver(ctx, from, to, msg)
	}), m)
}

func (ps *plainSender) deliver(ctx context.Context, from string, to []string, msg io.WriterTo) error {
	dialer := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", ps.addr)
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, ps.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if err = c.Hello("localhost"); err != nil {
		return err
	}
	if ps.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err = c.Auth(plainAuth{username: ps.username, password: ps.password}); err != nil {
				return err
			}
		}
	}
	if err = c.Mail(from); err != nil {
		return err
	}
	for _, addr := range to {
		if err = c.Rcpt(addr); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = msg.WriteTo(w); err != nil {
		_ = w.Close()
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// plainAuth is AUTH PLAIN over an unencrypted connection; smtp.PlainAuth refuses that for remote hosts.
type plainAuth struct {
	username string
	password string
}

func (a plainAuth) Start(*smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte("\x00" + a.username + "\x00" + a.password), nil
}

func (a plainAuth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		return nil, errors.New("unexpected smtp auth challenge")
	}
	return nil, nil
}
