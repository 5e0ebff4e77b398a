package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rememory-app/backend/internal/requestdata"
	"github.com/rememory-app/backend/internal/services"
)

type PersonaHandler struct {
	personaService services.PersonaService
	timerService   services.TimerService
}

func NewPersonaHandler(personaService services.PersonaService, timerService services.TimerService) *PersonaHandler {
	return &PersonaHandler{personaService: personaService, timerService: timerService}
}

func (ph *PersonaHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var input services.CreatePersonaInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	personaID, err := ph.personaService.Create(c.Request.Context(), rd.OwnerID, rd.Email, input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"persona_id": personaID})
}

func (ph *PersonaHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	persona, err := ph.personaService.GetByOwner(c.Request.Context(), rd.OwnerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if persona == nil {
		RespondOK(c, gin.H{"persona": nil, "remainingMs": nil})
		return
	}
	RespondOK(c, gin.H{
		"persona":     persona,
		"remainingMs": services.ComputeRemainingMs(persona.ExpiresAt, timeNow()),
	})
}

func (ph *PersonaHandler) Update(c *gin.Context) {
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
	var input services.UpdatePersonaInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	if err := ph.personaService.Update(c.Request.Context(), personaID, rd.OwnerID, input); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}

func (ph *PersonaHandler) Delete(c *gin.Context) {
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
	var input struct {
		Confirmation string `json:"confirmation"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
		return
	}
	if err := ph.personaService.DeleteCascade(c.Request.Context(), personaID, rd.OwnerID, input.Confirmation); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// StartSession starts the 30-day window. Idempotent: calling it again
// returns the already-running session.
func (ph *PersonaHandler) StartSession(c *gin.Context) {
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
	if _, err := ph.personaService.ResolveOwned(c.Request.Context(), personaID, rd.OwnerID); err != nil {
		RespondServiceError(c, err)
		return
	}
	if err := ph.timerService.StartSessionIfNeeded(c.Request.Context(), personaID); err != nil {
		RespondServiceError(c, err)
		return
	}
	persona, err := ph.personaService.ResolveOwned(c.Request.Context(), personaID, rd.OwnerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"status":      persona.Status,
		"started_at":  persona.StartedAt,
		"expires_at":  persona.ExpiresAt,
		"remainingMs": services.ComputeRemainingMs(persona.ExpiresAt, timeNow()),
	})
}

func parsePersonaID(c *gin.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	personaID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid persona id %q", raw)
	}
	return personaID, nil
}
