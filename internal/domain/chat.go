package domain

// ChatMessage is the chat message shape sent to OpenAI-compatible providers.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
