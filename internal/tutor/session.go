package tutor

import (
	"strings"
	"time"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/coverage"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is the cached state of one conversation.
type Session struct {
	ConversationID   string                `json:"conversationId"`
	StudentID        string                `json:"studentId"`
	Week             int                   `json:"week"`
	Messages         []Message             `json:"messages"`
	Coverage         coverage.AreaCoverage `json:"coverage"`
	ConsecutiveFlags int                   `json:"consecutiveFlags"`
	Reflection       string                `json:"reflection,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

func (s *Session) addMessage(role Role, content string, at time.Time, limit int) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, At: at})
	if limit > 0 && len(s.Messages) > limit {
		s.Messages = append([]Message{}, s.Messages[len(s.Messages)-limit:]...)
	}
	s.UpdatedAt = at
}

// StudentMessages returns the student's messages in order.
func (s *Session) StudentMessages() []string {
	var out []string
	for _, m := range s.Messages {
		if m.Role == RoleStudent {
			out = append(out, m.Content)
		}
	}
	return out
}

func (s *Session) studentText() string {
	return strings.Join(s.StudentMessages(), "\n")
}
