package webserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/krn-labs/gripeboard/src/api/data"
	"github.com/krn-labs/gripeboard/src/api/ledger"
)

type Toggles struct {
	svc *ledger.Service
	rdb *redis.Client
}

func NewToggles(svc *ledger.Service, rdb *redis.Client) Toggles {
	return Toggles{svc: svc, rdb: rdb}
}

func (t Toggles) Star(c *gin.Context) {
	postID, ok := postParam(c)
	if !ok {
		return
	}
	var req struct {
		Direction string `json:"direction" binding:"required,oneof=up down"`
		TxDigest  string `json:"txDigest" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error(), "kind": ledger.KindValidation})
		return
	}

	addr := c.GetString("addr")
	res, err := t.svc.ToggleStar(c, postID, addr, ledger.Direction(req.Direction), req.TxDigest)
	t.respond(c, postID, addr, res, err)
}

func (t Toggles) Evict(c *gin.Context) {
	postID, ok := postParam(c)
	if !ok {
		return
	}
	var req struct {
		TxDigest string `json:"txDigest" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error(), "kind": ledger.KindValidation})
		return
	}

	addr := c.GetString("addr")
	res, err := t.svc.EvictStar(c, postID, addr, req.TxDigest)
	t.respond(c, postID, addr, res, err)
}

func (t Toggles) Flag(c *gin.Context) {
	postID, ok := postParam(c)
	if !ok {
		return
	}
	var req struct {
		Direction string `json:"direction" binding:"required,oneof=up down"`
		Reason    string `json:"reason" binding:"max=512"`
		TxDigest  string `json:"txDigest" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error(), "kind": ledger.KindValidation})
		return
	}

	addr := c.GetString("addr")
	res, err := t.svc.ToggleFlag(c, postID, addr, ledger.Direction(req.Direction), req.Reason, req.TxDigest)
	t.respond(c, postID, addr, res, err)
}

func (t Toggles) respond(c *gin.Context, postID uint64, addr string, res ledger.Result, err error) {
	if err != nil {
		kind := ledger.KindOf(err)
		c.JSON(statusOf(kind), gin.H{"err": messageOf(err), "kind": kind})
		return
	}

	_ = data.PublishToggle(context.Background(), t.rdb, map[string]interface{}{
		"post":  postID,
		"addr":  addr,
		"op":    string(res.Op),
		"count": res.Count,
		"cost":  res.Cost,
		"time":  time.Now().Unix(),
	})
	c.JSON(http.StatusOK, res)
}

func postParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad post id", "kind": ledger.KindValidation})
		return 0, false
	}
	return id, true
}

func statusOf(kind ledger.Kind) int {
	switch kind {
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindPaymentNotVerified:
		return http.StatusPaymentRequired
	case ledger.KindAlreadyStarred, ledger.KindNothingToRemove, ledger.KindNoTarget, ledger.KindDigestUsed:
		return http.StatusConflict
	case ledger.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func messageOf(err error) string {
	var le *ledger.Error
	if errors.As(err, &le) {
		return le.Msg
	}
	return err.Error()
}
