package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rememory-app/backend/internal/requestdata"
	"github.com/rememory-app/backend/internal/services"
)

type NotificationHandler struct {
	notifierService services.NotifierService
}

func NewNotificationHandler(notifierService services.NotifierService) *NotificationHandler {
	return &NotificationHandler{notifierService: notifierService}
}

func (nh *NotificationHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	notifications, err := nh.notifierService.ListByUser(c.Request.Context(), rd.OwnerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"notifications": notifications})
}
