package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rememory-app/backend/internal/requestdata"
	"github.com/rememory-app/backend/internal/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type sendMessageInput struct {
	Text            string `json:"text" binding:"required,max=4000"`
	ClientMessageID string `json:"clientMessageId"`
	Synthetic       bool   `json:"synthetic"`
}

func (ch *ChatHandler) SendMessage(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	personaID, err := parsePersonaID(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_persona_id", err)
		return
	}
	var input sendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	result, err := ch.chatService.HandleTurn(c.Request.Context(), personaID, rd.OwnerID, services.TurnInput{
		Text:            input.Text,
		ClientMessageID: input.ClientMessageID,
		Synthetic:       input.Synthetic,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (ch *ChatHandler) ListMessages(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	personaID, err := parsePersonaID(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_persona_id", err)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil || parsed < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", parseErr)
			return
		}
		limit = parsed
	}
	messages, err := ch.chatService.ListMessages(c.Request.Context(), personaID, rd.OwnerID, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}
