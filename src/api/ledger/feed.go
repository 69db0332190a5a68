package ledger

import (
	"context"
	"time"

	"github.com/krn-labs/gripeboard/src/api/types"
)

const MaxFeedLimit = 200

type SortMode string

const (
	SortNewest      SortMode = "newest"
	SortOldest      SortMode = "oldest"
	SortMostStarred SortMode = "most_starred"
	SortMostFlagged SortMode = "most_flagged"
)

func ParseSort(s string) (SortMode, error) {
	switch SortMode(s) {
	case SortNewest, SortOldest, SortMostStarred, SortMostFlagged:
		return SortMode(s), nil
	case "":
		return SortNewest, nil
	}
	return "", errf(KindValidation, "unknown sort mode")
}

type FeedQuery struct {
	Limit          int
	Before         *time.Time // strictly older than this created_at
	After          *time.Time // strictly newer than this created_at
	Sort           SortMode
	IncludeFlagged bool
	Viewer         string // optional; fills per-item membership
}

type FeedItem struct {
	types.Post
	Starred bool `json:"starred"`
	Flagged bool `json:"flagged"`
}

type FeedPage struct {
	Items   []FeedItem `json:"items"`
	HasMore bool       `json:"hasMore"`
	Oldest  *time.Time `json:"oldest,omitempty"`
	Newest  *time.Time `json:"newest,omitempty"`
}

// ListFeed is the read-only feed path. Cursors always constrain created_at,
// whatever the active sort mode; ordering follows the mode. Flagged posts
// are dropped unless explicitly requested.
func (s *Service) ListFeed(ctx context.Context, q FeedQuery) (FeedPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	db := s.db.WithContext(ctx).Model(&types.Post{})
	if !q.IncludeFlagged {
		db = db.Where("is_flagged = ?", false)
	}
	if q.Before != nil {
		db = db.Where("created_at < ?", *q.Before)
	}
	if q.After != nil {
		db = db.Where("created_at > ?", *q.After)
	}

	switch q.Sort {
	case SortOldest:
		db = db.Order("created_at asc")
	case SortMostStarred:
		db = db.Order("star_count desc, created_at desc")
	case SortMostFlagged:
		db = db.Order("flag_count desc, created_at desc")
	default:
		db = db.Order("created_at desc")
	}

	var posts []types.Post
	if err := db.Limit(limit).Find(&posts).Error; err != nil {
		return FeedPage{}, wrap(err)
	}

	starred, flagged, err := s.membership(ctx, q.Viewer, posts)
	if err != nil {
		return FeedPage{}, wrap(err)
	}

	page := FeedPage{
		Items:   make([]FeedItem, len(posts)),
		HasMore: len(posts) == limit,
	}
	for i, p := range posts {
		page.Items[i] = FeedItem{Post: p, Starred: starred[p.ID], Flagged: flagged[p.ID]}
		ts := p.CreatedAt
		if page.Oldest == nil || ts.Before(*page.Oldest) {
			t := ts
			page.Oldest = &t
		}
		if page.Newest == nil || ts.After(*page.Newest) {
			t := ts
			page.Newest = &t
		}
	}
	return page, nil
}

func (s *Service) membership(ctx context.Context, viewer string, posts []types.Post) (map[uint64]bool, map[uint64]bool, error) {
	starred := map[uint64]bool{}
	flagged := map[uint64]bool{}
	if viewer == "" || len(posts) == 0 {
		return starred, flagged, nil
	}

	ids := make([]uint64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	var starIDs []uint64
	if err := s.db.WithContext(ctx).Model(&types.Star{}).
		Where("addr = ? AND post_id IN ?", viewer, ids).
		Pluck("post_id", &starIDs).Error; err != nil {
		return nil, nil, err
	}
	for _, id := range starIDs {
		starred[id] = true
	}

	var flagIDs []uint64
	if err := s.db.WithContext(ctx).Model(&types.Flag{}).
		Where("addr = ? AND post_id IN ?", viewer, ids).
		Pluck("post_id", &flagIDs).Error; err != nil {
		return nil, nil, err
	}
	for _, id := range flagIDs {
		flagged[id] = true
	}
	return starred, flagged, nil
}
