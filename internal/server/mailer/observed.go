package mailer

import (
	"context"

	"github.com/iudanet/commentauth/internal/server/metrics"
)

// Observed counts delivery attempts of the wrapped Mailer.
type Observed struct {
	next    Mailer
	metrics *metrics.Metrics
}

// NewObserved wraps next. A nil m disables counting.
func NewObserved(next Mailer, m *metrics.Metrics) *Observed {
	return &Observed{next: next, metrics: m}
}

// SendVerificationCode delegates and records the outcome.
func (o *Observed) SendVerificationCode(ctx context.Context, to, code, lang string) error {
	err := o.next.SendVerificationCode(ctx, to, code, lang)
	o.metrics.EmailSent("verification", err)
	return err
}

// SendTwoFactorCode delegates and records the outcome.
func (o *Observed) SendTwoFactorCode(ctx context.Context, to, code string) error {
	err := o.next.SendTwoFactorCode(ctx, to, code)
	o.metrics.EmailSent("two_factor", err)
	return err
}
