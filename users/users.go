package users

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// RoleType represents the role the backend assigns to a customer account
type RoleType string

const (
	RoleAdmin    RoleType = "admin"    // Staff account, can approve customers
	RoleCustomer RoleType = "customer" // Regular customer account
)

// User is the signed-in account as reported by the backend. It holds identity and
// the approval flag only; credentials never live here.
type User struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	IsApproved bool     `json:"isApproved"`
	Role       RoleType `json:"role,omitempty"`
}

// wireUser accepts the field spellings the backend has used over time
// (id/_id, firstName/fName, lastName/lName, name).
type wireUser struct {
	ID         string   `json:"id"`
	MongoID    string   `json:"_id"`
	Email      string   `json:"email"`
	FirstName  string   `json:"firstName"`
	FName      string   `json:"fName"`
	LastName   string   `json:"lastName"`
	LName      string   `json:"lName"`
	Name       string   `json:"name"`
	IsApproved *bool    `json:"isApproved"`
	Approved   *bool    `json:"approved"`
	Role       RoleType `json:"role"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	u.ID = firstNonEmpty(w.ID, w.MongoID)
	u.Email = w.Email
	u.FirstName = firstNonEmpty(w.FirstName, w.FName)
	u.LastName = firstNonEmpty(w.LastName, w.LName)
	if u.FirstName == "" && u.LastName == "" && w.Name != "" {
		u.FirstName, u.LastName = splitName(w.Name)
	}
	switch {
	case w.IsApproved != nil:
		u.IsApproved = *w.IsApproved
	case w.Approved != nil:
		u.IsApproved = *w.Approved
	default:
		u.IsApproved = false
	}
	u.Role = w.Role
	return nil
}

// FullName returns "First Last", falling back to the email address
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// IsAdmin returns true for staff accounts
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Clone returns a copy that callers may hold without sharing state with the session
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
