package webserver

import (
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/OneOfOne/xxhash"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/krn-labs/gripeboard/src/api/ledger"
	"github.com/krn-labs/gripeboard/src/api/types"
)

const dupWindow = 24 * time.Hour

type Gripes struct {
	db        *gorm.DB
	svc       *ledger.Service
	sanitizer *bluemonday.Policy
}

func NewGripes(db *gorm.DB, svc *ledger.Service) Gripes {
	// Plain-text board: strip all markup from submissions.
	return Gripes{db: db, svc: svc, sanitizer: bluemonday.StrictPolicy()}
}

func (g Gripes) Create(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required,min=1,max=5000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	msg := strings.TrimSpace(g.sanitizer.Sanitize(req.Message))
	if !utf8.ValidString(msg) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid characters in message"})
		return
	}
	if n := utf8.RuneCountInString(msg); n < 1 || n > 5000 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "message must be between 1 and 5000 characters"})
		return
	}

	// Verbatim resubmissions within the window are refused. The guard is
	// best-effort: two identical posts racing between the count and the
	// insert can both land, which costs nothing worse than a duplicate.
	fp := xxhash.Checksum64([]byte(msg))
	var dup int64
	if err := g.db.Model(&types.Post{}).
		Where("fingerprint = ? AND created_at > ?", fp, time.Now().Add(-dupWindow)).
		Count(&dup).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": err.Error()})
		return
	}
	if dup > 0 {
		c.JSON(http.StatusConflict, gin.H{"err": "identical post submitted recently", "kind": "duplicate"})
		return
	}

	post := types.Post{Message: msg, Fingerprint: fp}
	if addr := c.GetString("addr"); addr != "" {
		post.AuthorAddr = &addr
	}
	if err := g.db.Create(&post).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": post.ID})
}

func (g Gripes) List(c *gin.Context) {
	q, err := parseFeedQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	page, err := g.svc.ListFeed(c, q)
	if err != nil {
		// Best-effort read path: an empty page beats a failed response.
		log.Printf("feed: %v", err)
		c.JSON(http.StatusOK, ledger.FeedPage{Items: []ledger.FeedItem{}})
		return
	}
	c.JSON(http.StatusOK, page)
}

func parseFeedQuery(c *gin.Context) (ledger.FeedQuery, error) {
	var q ledger.FeedQuery

	sort, err := ledger.ParseSort(c.Query("sort"))
	if err != nil {
		return q, err
	}
	q.Sort = sort

	var params struct {
		Limit       int    `form:"limit"`
		Before      string `form:"before"`
		After       string `form:"after"`
		ShowFlagged bool   `form:"show_flagged"`
		UserAddr    string `form:"user_addr"`
	}
	if err := c.ShouldBindQuery(&params); err != nil {
		return q, err
	}

	q.Limit = params.Limit
	q.IncludeFlagged = params.ShowFlagged
	if params.Before != "" {
		t, err := time.Parse(time.RFC3339Nano, params.Before)
		if err != nil {
			return q, err
		}
		q.Before = &t
	}
	if params.After != "" {
		t, err := time.Parse(time.RFC3339Nano, params.After)
		if err != nil {
			return q, err
		}
		q.After = &t
	}

	q.Viewer = c.GetString("addr")
	if q.Viewer == "" {
		q.Viewer = params.UserAddr
	}
	return q, nil
}
