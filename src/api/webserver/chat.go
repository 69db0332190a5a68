package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/krn-labs/gripeboard/src/api/chat"
	"github.com/krn-labs/gripeboard/src/api/config"
)

type Chat struct {
	client *chat.Client
}

func NewChat(cfg config.Config) Chat {
	if cfg.LLMAPIKey == "" {
		return Chat{}
	}
	return Chat{client: chat.NewClient(cfg.LLMAPIKey, cfg.LLMModel)}
}

func (h Chat) Relay(c *gin.Context) {
	if h.client == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": "chat relay not configured"})
		return
	}
	var req struct {
		Message string `json:"message" binding:"required,min=1,max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	reply, err := h.client.Reply(c, req.Message)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
