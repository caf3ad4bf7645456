// Package emailsvc implements the mail transports.
package emailsvc

import (
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core"
)

// NewService returns the transport selected by EMAIL_BACKEND.
func NewService(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	switch conf.Email.Backend {
	case "", "smtp":
		return NewSMTPService(conf), nil
	case "sendgrid":
		return NewSendgridService(conf), nil
	case "console":
		return NewConsoleService(conf, logger), nil
	default:
		return nil, errors.Errorf("unknown email backend %q", conf.Email.Backend)
	}
}

func checkMessage(msg *core.EmailMessage) error {
	if !msg.HasRecipients() {
		return errors.New("email has no recipients")
	}
	if !msg.HasContent() {
		return errors.New("email has no content")
	}
	return nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
