package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/tutor"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

const turnTimeout = 60 * time.Second

type WebSocketHandler struct {
	tutor ChatService
}

func NewWebSocketHandler(tutor ChatService) *WebSocketHandler {
	return &WebSocketHandler{
		tutor: tutor,
	}
}

func (h *WebSocketHandler) Register(api fiber.Router) {
	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws/chat", websocket.New(h.HandleConnection))
}

type wsMessage struct {
	Type           string `json:"type"`
	StudentID      string `json:"studentId" validate:"required,max=64"`
	ConversationID string `json:"conversationId" validate:"omitempty,max=64"`
	Week           int    `json:"week" validate:"required,min=1,max=52"`
	Message        string `json:"message" validate:"required,max=8000"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage

		err := c.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "chat" {
			continue
		}

		if err := validate.Struct(&msg); err != nil {
			h.sendError(c, describeValidation(err))
			continue
		}

		err = h.streamReply(c, msg)
		if err != nil {
			logger.Warn("Failed to stream reply", zap.Error(err))
			h.sendError(c, clientMessage(err))
		}
	}
}

func (h *WebSocketHandler) streamReply(c *websocket.Conn, msg wsMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	if err := h.sendChunk(c, "status", "Thinking..."); err != nil {
		return err
	}

	response, err := h.tutor.HandleMessage(ctx, tutor.ChatRequest{
		StudentID:      msg.StudentID,
		ConversationID: msg.ConversationID,
		Week:           msg.Week,
		Message:        msg.Message,
	})
	if err != nil {
		return err
	}

	if response.Crisis != nil {
		return c.WriteJSON(map[string]interface{}{
			"type":           "crisis",
			"conversationId": response.ConversationID,
			"category":       response.Crisis.Category,
			"content":        response.Reply,
		})
	}

	words := splitIntoWords(response.Reply)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, response)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *tutor.ChatResponse) error {
	return c.WriteJSON(map[string]interface{}{
		"type":           "complete",
		"conversationId": response.ConversationID,
		"coverage":       response.Coverage,
		"newlyCovered":   response.NewlyCovered,
		"readyToSubmit":  response.ReadyToSubmit,
		"gaming":         response.Gaming,
		"week":           response.Week,
		"latencyMs":      response.LatencyMS,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	_ = c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

// clientMessage hides server-side failures behind a generic text.
func clientMessage(err error) string {
	return publicMessage(err, "Failed to process message")
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
