package email

import (
	"context"

	"leadflow_backend/platform/config"
)

// AssignedLead is one row of the assignment summary mail.
type AssignedLead struct {
	Name     string
	Interest string
	Source   string
	Phone    string
}

type Sender interface {
	SendLeadsAssignedEmail(ctx context.Context, toEmail, advisorName string, leads []AssignedLead) error
}

type NoopSender struct{}

func (NoopSender) SendLeadsAssignedEmail(ctx context.Context, toEmail, advisorName string, leads []AssignedLead) error {
	return nil
}

// NewSender returns an SMTP sender, or a no-op sender when SMTP is not configured.
func NewSender(cfg config.MailConfig) Sender {
	if !cfg.IsMailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}
