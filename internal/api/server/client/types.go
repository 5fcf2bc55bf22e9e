package client

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Model    string        `json:"model" validate:"required"`
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

// ChatMessage is one turn of the conversation. Content is nil when the caller
// sent null or left the field out.
type ChatMessage struct {
	Role    string  `json:"role" validate:"required,oneof=user assistant system"`
	Content *string `json:"content" validate:"required"`
}

func NewChatMessage(role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: &content}
}

func (m ChatMessage) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// ServerChatMessage is the message shape the upstream expects.
type ServerChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ServerChatRequest is the payload forwarded upstream.
type ServerChatRequest struct {
	Model    string              `json:"model"`
	Messages []ServerChatMessage `json:"messages"`
	Stream   bool                `json:"stream"` // Always true for streaming
}

// Record is one decoded upstream stream element.
type Record struct {
	Content string
	Done    bool
}
