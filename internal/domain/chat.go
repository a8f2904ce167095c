package domain

// Role identifies the author of a transcript entry
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one entry of a tutor transcript
type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserMessage creates a learner-authored transcript entry
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Text: text}
}

// ModelMessage creates a tutor-authored transcript entry
func ModelMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleModel, Text: text}
}
