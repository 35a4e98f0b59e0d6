// Package contact turns contact form submissions into notification emails.
package contact

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrDelivery          = errors.New("email delivery failed")
)

// Service validates, composes and delivers submissions
type Service struct {
	mailer    Mailer
	composer  *Composer
	from      string
	recipient string
	metrics   *metrics.Metrics
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(mailer Mailer, from, recipient string, options ...ServiceOption) (*Service, error) {
	if mailer == nil {
		return nil, errors.New("[NewService] mailer is required")
	}
	if recipient == "" {
		return nil, errors.New("[NewService] recipient is required")
	}
	composer, err := NewComposer()
	if err != nil {
		return nil, err
	}
	s := &Service{mailer: mailer, composer: composer, from: from, recipient: recipient}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Submit validates s and emails it to the site owner
func (svc *Service) Submit(ctx context.Context, s Submission) error {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		svc.metrics.ObserveContact(metrics.OutcomeInvalid)
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}

	email, err := svc.composer.Compose(s, svc.from, svc.recipient)
	if err != nil {
		svc.metrics.ObserveContact(metrics.OutcomeFailure)
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if err := svc.mailer.Send(ctx, email); err != nil {
		svc.metrics.ObserveContact(metrics.OutcomeFailure)
		log.Error().Err(err).Msg("contact email not delivered")
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	svc.metrics.ObserveContact(metrics.OutcomeSuccess)
	return nil
}
