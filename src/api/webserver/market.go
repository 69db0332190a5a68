package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/krn-labs/gripeboard/src/api/market"
)

type Market struct {
	client *market.Client
}

func NewMarket(url string) Market {
	if url == "" {
		return Market{}
	}
	return Market{client: market.NewClient(url)}
}

func (h Market) Ticker(c *gin.Context) {
	if h.client == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": "market proxy not configured"})
		return
	}
	t, err := h.client.Ticker(c)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}
