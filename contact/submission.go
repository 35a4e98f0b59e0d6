package contact

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/jrsteele09/go-portal/users"
)

// Submission is one contact form entry
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Service string `json:"service"`
	Budget  string `json:"budget"`
	Message string `json:"message"`
}

func (s Submission) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&s.Email, validation.Required, is.Email),
		validation.Field(&s.Phone, validation.By(users.PhoneRule)),
		validation.Field(&s.Company, validation.Length(0, 200)),
		validation.Field(&s.Service, validation.Length(0, 100)),
		validation.Field(&s.Budget, validation.Length(0, 50)),
		validation.Field(&s.Message, validation.Required, validation.Length(10, 5000)),
	)
}

// Normalize trims every field and puts the phone number in E.164 form when it parses
func (s Submission) Normalize() Submission {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(strings.ToLower(s.Email))
	s.Phone = strings.TrimSpace(s.Phone)
	s.Company = strings.TrimSpace(s.Company)
	s.Service = strings.TrimSpace(s.Service)
	s.Budget = strings.TrimSpace(s.Budget)
	s.Message = strings.TrimSpace(s.Message)
	if phone, err := users.NormalizePhone(s.Phone); err == nil {
		s.Phone = phone
	}
	return s
}
