package authflowrepo

import "time"

// AuthFlowState is what the browser's OAuth round trip needs on return
type AuthFlowState struct {
	Provider     string
	SessionID    string
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
}
