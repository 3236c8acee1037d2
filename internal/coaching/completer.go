package coaching

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to the completion backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer turns a chat transcript into the assistant's text reply. It fails
// with *core.CompletionError on a non-success response, a timeout or empty content.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
