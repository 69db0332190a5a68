package types

import "time"

// Posts (gripes). Immutable after creation except for the denormalized
// counters and the cached flagged state, which only the ledger writes.
type Post struct {
	ID          uint64    `gorm:"primaryKey"`
	Message     string    `gorm:"size:5000;not null"`
	AuthorAddr  *string   `gorm:"size:66;index"`
	Fingerprint uint64    `gorm:"index"`
	StarCount   uint32    `gorm:"not null;default:0"`
	FlagCount   uint32    `gorm:"not null;default:0"`
	IsFlagged   bool      `gorm:"not null;default:false;index"`
	CreatedAt   time.Time `gorm:"index"`
	Stars       []Star    `gorm:"foreignKey:PostID" json:"-"`
	Flags       []Flag    `gorm:"foreignKey:PostID" json:"-"`
}

// Stars: at most one row per (post, addr).
type Star struct {
	PostID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	Addr      string `gorm:"primaryKey;size:66"`
	CreatedAt time.Time
	Post      Post `gorm:"foreignKey:PostID"`
}

// Flags: same uniqueness as stars, with an optional reason.
type Flag struct {
	PostID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	Addr      string `gorm:"primaryKey;size:66"`
	Reason    string `gorm:"size:512"`
	CreatedAt time.Time
	Post      Post `gorm:"foreignKey:PostID"`
}

// Consumed payment digests. The unique key is what stops a digest from
// paying for two toggles; rows are written inside the toggle transaction.
type ConsumedDigest struct {
	Digest    string `gorm:"primaryKey;size:64"`
	Addr      string `gorm:"size:66;not null"`
	AmountKRN int64  `gorm:"not null"`
	CreatedAt time.Time
}
