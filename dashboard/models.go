package dashboard

import (
	"encoding/json"
	"fmt"
	"time"
)

type Plan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	Interval    string   `json:"interval,omitempty"`
	Features    []string `json:"features,omitempty"`
	Current     bool     `json:"current,omitempty"`
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	type alias Plan
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = aux.MongoID
	}
	return nil
}

// PriceLabel formats the price for display, e.g. "$49.00 / month"
func (p Plan) PriceLabel() string {
	label := formatMoney(p.Price, p.Currency)
	if p.Interval != "" {
		label += " / " + p.Interval
	}
	return label
}

type InvoiceStatus string

const (
	InvoicePaid    InvoiceStatus = "paid"
	InvoicePending InvoiceStatus = "pending"
	InvoiceOverdue InvoiceStatus = "overdue"
)

type Invoice struct {
	ID       string        `json:"id"`
	Number   string        `json:"number,omitempty"`
	Amount   float64       `json:"amount"`
	Currency string        `json:"currency,omitempty"`
	Status   InvoiceStatus `json:"status"`
	IssuedAt time.Time     `json:"issuedAt"`
	DueAt    *time.Time    `json:"dueAt,omitempty"`
	PDFURL   string        `json:"pdfUrl,omitempty"`
}

func (i *Invoice) UnmarshalJSON(data []byte) error {
	type alias Invoice
	aux := struct {
		*alias
		MongoID   string     `json:"_id"`
		CreatedAt *time.Time `json:"createdAt"`
	}{alias: (*alias)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if i.ID == "" {
		i.ID = aux.MongoID
	}
	if i.IssuedAt.IsZero() && aux.CreatedAt != nil {
		i.IssuedAt = *aux.CreatedAt
	}
	return nil
}

func (i Invoice) AmountLabel() string {
	return formatMoney(i.Amount, i.Currency)
}

type RequestStatus string

const (
	RequestOpen       RequestStatus = "open"
	RequestInProgress RequestStatus = "in-progress"
	RequestCompleted  RequestStatus = "completed"
)

// ServiceRequest is a customer's request for work
type ServiceRequest struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Service     string        `json:"service,omitempty"`
	Description string        `json:"description,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func (r *ServiceRequest) UnmarshalJSON(data []byte) error {
	type alias ServiceRequest
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = aux.MongoID
	}
	if r.Status == "" {
		r.Status = RequestOpen
	}
	return nil
}

// NewRequest is the body of a new service request
type NewRequest struct {
	Title       string `json:"title"`
	Service     string `json:"service"`
	Description string `json:"description"`
}

var currencySymbols = map[string]string{
	"":    "$",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

func formatMoney(amount float64, currency string) string {
	if sym, ok := currencySymbols[currency]; ok {
		return fmt.Sprintf("%s%.2f", sym, amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}
