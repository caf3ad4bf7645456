package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/dormportal/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

type sendgridService struct {
	key  string
	from mail.Address
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config) *sendgridService {
	return &sendgridService{
		key:  conf.Email.SendgridApiKey,
		from: conf.DefaultFromEmail(),
	}
}

func (svc *sendgridService) CheckConfig() error {
	if svc.key == "" || svc.from.Address == "" {
		return core.ErrMailNotConfigured
	}
	return nil
}

func (svc *sendgridService) prepare(msg *core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(svc.from.Name, svc.from.Address))
	m.AddPersonalizations(p)

	// text/plain must come first
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func (svc *sendgridService) Send(ctx context.Context, msg *core.EmailMessage) error {
	if err := svc.CheckConfig(); err != nil {
		return err
	}
	if err := checkMessage(msg); err != nil {
		return err
	}

	req := sendgrid.GetRequest(svc.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "sending email over sendgrid")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid responded with status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
