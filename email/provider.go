// Package email sends outcome reports for pipeline runs via multiple providers.
package email

import (
	"context"
	"errors"
	"log/slog"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sender renders reports and delivers them to a single operator address.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	to       string
}

// New creates a new email sender with the given provider.
func New(provider Provider, logger *slog.Logger, to string) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		to:       to,
	}
}

// Enabled reports whether reports have a recipient.
func (s *Sender) Enabled() bool {
	return s != nil && s.to != ""
}

// Send renders r and sends it. Without a recipient the report is only logged.
func (s *Sender) Send(ctx context.Context, r Report) error {
	if r.Subject == "" {
		return errors.New("email: report has no subject")
	}
	if !s.Enabled() {
		s.logger.Info("No report recipient configured, skipping email", "subject", r.Subject)
		return nil
	}

	s.logger.Info("Sending report email",
		"to", s.to,
		"subject", r.Subject,
		"status", r.Status)

	return s.provider.Send(ctx, s.to, r.Subject, formatReport(r))
}
