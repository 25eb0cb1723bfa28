package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/voiceclone/internal/services"
	"github.com/charlesng35/voiceclone/pkg/response"
)

// CreditsHandler proxies the provider account balance.
type CreditsHandler struct {
	voices *services.VoiceService
}

// NewCreditsHandler constructs a CreditsHandler instance.
func NewCreditsHandler(voices *services.VoiceService) *CreditsHandler {
	return &CreditsHandler{voices: voices}
}

// Credits reports the remaining provider credit.
func (h *CreditsHandler) Credits(c *gin.Context) {
	balance, err := h.voices.Credits(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"credit":          balance.Credit,
		"has_free_credit": balance.HasFreeCredit,
	})
}
