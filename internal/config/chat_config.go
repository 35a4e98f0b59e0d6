package config

import (
	"strings"
	"time"
)

type ChatConfig interface {
	GetChatAPIURL() string
	GetChatAPIKey() string
	GetChatModel() string
	GetChatSystemPrompt() string
	GetChatHistoryLimit() int
	GetChatTimeout() time.Duration
}

type Chat struct{}

var _ ChatConfig = Chat{}

func (Chat) GetChatAPIURL() string {
	return strings.TrimRight(GetEnv("CHAT_API_URL", "https://api.openai.com/v1"), "/")
}

func (Chat) GetChatAPIKey() string {
	return GetEnv("CHAT_API_KEY", "")
}

func (Chat) GetChatModel() string {
	return GetEnv("CHAT_MODEL", "gpt-4o-mini")
}

func (Chat) GetChatSystemPrompt() string {
	return GetEnv("CHAT_SYSTEM_PROMPT",
		"You are the website assistant of an IT services company. Answer questions about our services, pricing and process briefly and politely. If you do not know, suggest the contact form.")
}

func (Chat) GetChatHistoryLimit() int {
	return GetEnvInt("CHAT_HISTORY_LIMIT", 12)
}

func (Chat) GetChatTimeout() time.Duration {
	return GetEnvDuration("CHAT_TIMEOUT", 30*time.Second)
}
