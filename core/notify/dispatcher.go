// Package notify emails daily report summaries.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/student"
)

const (
	reportTemplate = "daily_report"
	sendTimeout    = time.Minute
)

var ErrQueueFull = errors.New("email queue is full, try again later")

type (
	// Submitter runs jobs in the background; Submit must not block.
	Submitter interface {
		Submit(job func(ctx context.Context)) bool
	}

	// ReportData is what the daily report templates render.
	ReportData struct {
		Student          student.Student
		Report           student.DailyReport
		UploadedImageURL string // absolute; empty without an upload
	}

	Dispatcher struct {
		mailer  core.EmailService
		jobs    Submitter
		appName string
		logger  core.Logger
	}
)

func NewDispatcher(mailer core.EmailService, jobs Submitter, appName string, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:  mailer,
		jobs:    jobs,
		appName: appName,
		logger:  logger,
	}
}

// Subject is "Dorm Report - <student name> - <YYYY-MM-DD>".
func Subject(st student.Student, r student.DailyReport) string {
	return fmt.Sprintf("Dorm Report - %s - %s", st.Name, r.Date())
}

// Compose builds the rendered message for report. Both bodies are rendered from their own template.
func (d *Dispatcher) Compose(st student.Student, r student.DailyReport, baseURL string) (*core.EmailMessage, error) {
	data := ReportData{Student: st, Report: r}
	if r.ImagePath.Valid {
		data.UploadedImageURL = strings.TrimRight(baseURL, "/") + r.ImagePath.String
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: st.Name, Address: st.Email}},
		Subject:      Subject(st, r),
		TemplateName: reportTemplate,
		TemplateData: data,
	}
	if err := msg.Render(d.appName); err != nil {
		return nil, errors.Wrap(err, "rendering report email")
	}
	if !msg.HasContent() {
		return nil, errors.Errorf("template %q rendered nothing", reportTemplate)
	}
	return msg, nil
}

// Dispatch checks the transport, composes the email and schedules its delivery.
// It returns once the send is scheduled: delivery failures are only logged.
func (d *Dispatcher) Dispatch(ctx context.Context, st student.Student, r student.DailyReport, baseURL string) error {
	if err := d.mailer.CheckConfig(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := d.Compose(st, r, baseURL)
	if err != nil {
		return err
	}

	accepted := d.jobs.Submit(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		if err := d.mailer.Send(ctx, msg); err != nil {
			d.logger.Error(fmt.Sprintf("notify: sending %q to %s: %v", msg.Subject, st.Email, err), err)
		}
	})
	if !accepted {
		return ErrQueueFull
	}
	return nil
}
