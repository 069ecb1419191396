package summary

import "context"

// Role of a chat message
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat turn
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Params are the sampling settings for one completion
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatModel completes a conversation with a language model
type ChatModel interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}
