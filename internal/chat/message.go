package chat

import "fmt"

type Role int

const (
	User Role = iota
	Bot
)

func (r Role) String() string {
	switch r {
	case User:
		return "user"
	case Bot:
		return "bot"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case User, Bot:
		return []byte(r.String()), nil
	}
	return nil, fmt.Errorf("invalid role %d", int(r))
}

func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "user":
		*r = User
	case "bot":
		*r = Bot
	default:
		return fmt.Errorf("unknown role %q", b)
	}
	return nil
}

// Message is one transcript entry. Its position in the log is its sequence.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

const (
	greeting = "Hello! I'm your AI health assistant. Select a domain above to get specialized help:\n\n" +
		"🏥 General Health: Describe symptoms for disease prediction\n" +
		"🥗 Diet & Nutrition: Get dietary recommendations\n" +
		"💪 Workouts & Exercise: Safe exercise guidance\n" +
		"💊 Medications: Treatment information\n" +
		"⚠️ Precautions: Safety and prevention tips"

	apology = "Sorry, I encountered an error. Please try again."

	// FailureNotice is raised as a notification whenever a request fails.
	FailureNotice = "Failed to get response from chatbot"
)

// Greeting is the bot message every new session starts with.
func Greeting() Message {
	return Message{Role: Bot, Content: greeting}
}

// Apology is the bot message appended when a request fails.
func Apology() Message {
	return Message{Role: Bot, Content: apology}
}
