// Package dashboard reads and writes the customer's plans, invoices and service requests.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	perrors "github.com/jrsteele09/go-portal/internal/errors"
)

const (
	PlansPath      = "/plans"
	MyInvoicesPath = "/invoices/my-invoices"
	RequestsPath   = "/requests"
)

// API is the authenticated backend client of the current session
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, in, out any) error
}

// Service is stateless; the session's API client is passed on each call
type Service struct{}

func New() *Service {
	return &Service{}
}

func (s *Service) Plans(ctx context.Context, api API) ([]Plan, error) {
	var plans []Plan
	if err := getList(ctx, api, PlansPath, &plans); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *Service) SubscribePlan(ctx context.Context, api API, planID string) error {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return fmt.Errorf("%w: plan id is required", perrors.ErrValidation)
	}
	if err := api.Post(ctx, PlansPath, map[string]string{"planId": planID}, nil); err != nil {
		return fmt.Errorf("subscribe to plan: %w", err)
	}
	return nil
}

func (s *Service) MyInvoices(ctx context.Context, api API) ([]Invoice, error) {
	var invoices []Invoice
	if err := getList(ctx, api, MyInvoicesPath, &invoices); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

func (s *Service) Requests(ctx context.Context, api API) ([]ServiceRequest, error) {
	var requests []ServiceRequest
	if err := getList(ctx, api, RequestsPath, &requests); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

func (r NewRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(3, 120)),
		validation.Field(&r.Service, validation.Required),
		validation.Field(&r.Description, validation.Length(0, 4000)),
	)
}

func (s *Service) CreateRequest(ctx context.Context, api API, req NewRequest) (*ServiceRequest, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", perrors.ErrValidation, err)
	}

	var raw json.RawMessage
	if err := api.Post(ctx, RequestsPath, req, &raw); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	created := &ServiceRequest{}
	if err := unwrapData(raw, created); err != nil || created.ID == "" {
		// some backends answer 201 with no body
		created = &ServiceRequest{Title: req.Title, Service: req.Service, Description: req.Description, Status: RequestOpen}
	}
	return created, nil
}

// getList accepts a bare array or {data: [...]}
func getList(ctx context.Context, api API, path string, out any) error {
	var raw json.RawMessage
	if err := api.Get(ctx, path, &raw); err != nil {
		return err
	}
	if err := unwrapData(raw, out); err != nil {
		return fmt.Errorf("%w: %w: %w", perrors.ErrServer, perrors.ErrMalformedResponse, err)
	}
	return nil
}

func unwrapData(raw json.RawMessage, out any) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return err
		}
		if len(envelope.Data) > 0 {
			raw = envelope.Data
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return err
	}
	return nil
}
