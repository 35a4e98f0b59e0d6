package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/jrsteele09/go-portal/users"
)

const defaultRegisteredMessage = "Registration successful. Your account is pending approval."

// Registration is the sign-up form
type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Phone           string `json:"phone"`
	Company         string `json:"company"`
	Website         string `json:"website"`
}

func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100), validation.By(users.PasswordRule)),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(matches(r.Password))),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Phone, validation.Required, validation.By(users.PhoneRule)),
		validation.Field(&r.Company, validation.Length(0, 200)),
		validation.Field(&r.Website, is.URL),
	)
}

func matches(want string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != want {
			return fmt.Errorf("passwords do not match")
		}
		return nil
	}
}

type registerPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FName    string `json:"fName"`
	LName    string `json:"lName"`
	Phone    string `json:"phone"`
	Company  string `json:"company,omitempty"`
	Website  string `json:"website,omitempty"`
}

// Register creates an account. It never signs the user in: new accounts wait for approval.
func (m *Manager) Register(ctx context.Context, reg Registration) (string, error) {
	reg.Email = strings.TrimSpace(strings.ToLower(reg.Email))
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	reg.Website = strings.TrimSpace(reg.Website)

	m.update(func() { m.errMsg = "" })
	if err := reg.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	phone, err := users.NormalizePhone(reg.Phone)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, validation.Errors{"phone": err})
	}

	payload := registerPayload{
		Email:    reg.Email,
		Password: reg.Password,
		FName:    reg.FirstName,
		LName:    reg.LastName,
		Phone:    phone,
		Company:  strings.TrimSpace(reg.Company),
		Website:  reg.Website,
	}
	var resp struct {
		Message json.RawMessage `json:"message"`
	}
	if err := m.api.Post(ctx, RegisterPath, payload, &resp); err != nil {
		m.update(func() { m.errMsg = UserMessage(err) })
		return "", err
	}

	var msg string
	if err := json.Unmarshal(resp.Message, &msg); err != nil || msg == "" {
		msg = defaultRegisteredMessage
	}
	return msg, nil
}
