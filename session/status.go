package session

import "github.com/jrsteele09/go-portal/users"

// Status is the lifecycle state of a session context
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusAuthenticated
	StatusUnauthenticated
	StatusError
)

var statusNames = map[Status]string{
	StatusIdle:            "idle",
	StatusLoading:         "loading",
	StatusAuthenticated:   "authenticated",
	StatusUnauthenticated: "unauthenticated",
	StatusError:           "error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Snapshot is a copy of the session state safe to hand to templates. It never carries tokens.
type Snapshot struct {
	Status Status
	User   *users.User
	Error  string
}

func (s Snapshot) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

func (s Snapshot) IsApproved() bool {
	return s.IsAuthenticated() && s.User.IsApproved
}

func (s Snapshot) IsLoading() bool {
	return s.Status == StatusLoading
}
