// Package ledger is the system of record for stars and flags: it prices
// every toggle, checks the payment actually happened on chain, and applies
// the mutation exactly once.
package ledger

import (
	"context"
	"errors"

	"github.com/krn-labs/gripeboard/src/api/chain"
	"github.com/krn-labs/gripeboard/src/api/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentVerifier resolves a payment claim to a final boolean verdict.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, claim chain.PaymentClaim) bool
}

type Config struct {
	TreasuryAddr  string
	CoinType      string
	FlagPriceKRN  int64
	FlagThreshold int
}

type Service struct {
	db        *gorm.DB
	oracle    PaymentVerifier
	cfg       Config
	onFlagged func(types.Post)
}

func New(db *gorm.DB, oracle PaymentVerifier, cfg Config) *Service {
	return &Service{db: db, oracle: oracle, cfg: cfg}
}

// OnFlagged registers a hook fired after a commit that pushed a post over
// the flag threshold.
func (s *Service) OnFlagged(fn func(types.Post)) { s.onFlagged = fn }

type Direction string

const (
	DirUp   Direction = "up"
	DirDown Direction = "down"
)

type Result struct {
	Applied bool  `json:"applied"`
	Count   int   `json:"count"`
	Cost    int64 `json:"cost"`
	Op      Op    `json:"op"`
}

// ToggleStar adds or removes the acting address's own star. The whole
// read-price-verify-write sequence runs inside one transaction holding a
// row lock on the post, so the amount the oracle verified cannot go stale
// before the write: concurrent toggles on the same post serialize here,
// toggles on different posts do not contend.
func (s *Service) ToggleStar(ctx context.Context, postID uint64, addr string, dir Direction, txDigest string) (Result, error) {
	op := OpStarAdd
	if dir == DirDown {
		op = OpStarRemove
	} else if dir != DirUp {
		return Result{}, errf(KindValidation, "direction must be up or down")
	}
	if err := validateToggle(postID, addr, txDigest); err != nil {
		return Result{}, err
	}

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}

		snap, err := starSnapshot(tx, post.ID, addr)
		if err != nil {
			return err
		}
		cost, err := StarCost(op, snap)
		if err != nil {
			return err
		}
		if err := consumeDigest(tx, txDigest, addr, cost); err != nil {
			return err
		}
		if !s.verified(ctx, txDigest, addr, cost) {
			return errf(KindPaymentNotVerified, "payment not verified")
		}

		newCount := snap.TotalStars
		if op == OpStarAdd {
			if err := tx.Create(&types.Star{PostID: post.ID, Addr: addr}).Error; err != nil {
				return err
			}
			newCount++
		} else {
			if err := tx.Where("post_id = ? AND addr = ?", post.ID, addr).Delete(&types.Star{}).Error; err != nil {
				return err
			}
			newCount--
		}
		if err := tx.Model(&types.Post{}).Where("id = ?", post.ID).UpdateColumn("star_count", newCount).Error; err != nil {
			return err
		}

		res = Result{Applied: true, Count: newCount, Cost: cost, Op: op}
		return nil
	})
	if err != nil {
		return Result{}, wrap(err)
	}
	return res, nil
}

// EvictStar removes another address's star as a moderation action, at
// double the post's full star count. The victim is chosen deterministically:
// the oldest star not belonging to the moderator, ties broken by address.
func (s *Service) EvictStar(ctx context.Context, postID uint64, moderator string, txDigest string) (Result, error) {
	if err := validateToggle(postID, moderator, txDigest); err != nil {
		return Result{}, err
	}

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}

		snap, err := starSnapshot(tx, post.ID, moderator)
		if err != nil {
			return err
		}
		cost, err := StarCost(OpStarEvict, snap)
		if err != nil {
			return err
		}
		if err := consumeDigest(tx, txDigest, moderator, cost); err != nil {
			return err
		}
		if !s.verified(ctx, txDigest, moderator, cost) {
			return errf(KindPaymentNotVerified, "payment not verified")
		}

		var victim types.Star
		if err := tx.Where("post_id = ? AND addr <> ?", post.ID, moderator).
			Order("created_at asc, addr asc").First(&victim).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ? AND addr = ?", victim.PostID, victim.Addr).Delete(&types.Star{}).Error; err != nil {
			return err
		}

		newCount := snap.TotalStars - 1
		if err := tx.Model(&types.Post{}).Where("id = ?", post.ID).UpdateColumn("star_count", newCount).Error; err != nil {
			return err
		}

		res = Result{Applied: true, Count: newCount, Cost: cost, Op: OpStarEvict}
		return nil
	})
	if err != nil {
		return Result{}, wrap(err)
	}
	return res, nil
}

// ToggleFlag adds or removes the acting address's flag at the fixed
// configured price. Crossing the flag threshold marks the post flagged;
// dropping back under it clears the mark.
func (s *Service) ToggleFlag(ctx context.Context, postID uint64, addr string, dir Direction, reason, txDigest string) (Result, error) {
	op := OpFlagAdd
	if dir == DirDown {
		op = OpFlagRemove
	} else if dir != DirUp {
		return Result{}, errf(KindValidation, "direction must be up or down")
	}
	if err := validateToggle(postID, addr, txDigest); err != nil {
		return Result{}, err
	}

	var res Result
	var crossed *types.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}

		var total, own int64
		if err := tx.Model(&types.Flag{}).Where("post_id = ?", post.ID).Count(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&types.Flag{}).Where("post_id = ? AND addr = ?", post.ID, addr).Count(&own).Error; err != nil {
			return err
		}

		cost, err := FlagCost(op, s.cfg.FlagPriceKRN, int(own))
		if err != nil {
			return err
		}
		if err := consumeDigest(tx, txDigest, addr, cost); err != nil {
			return err
		}
		if !s.verified(ctx, txDigest, addr, cost) {
			return errf(KindPaymentNotVerified, "payment not verified")
		}

		newCount := int(total)
		if op == OpFlagAdd {
			if err := tx.Create(&types.Flag{PostID: post.ID, Addr: addr, Reason: reason}).Error; err != nil {
				return err
			}
			newCount++
		} else {
			if err := tx.Where("post_id = ? AND addr = ?", post.ID, addr).Delete(&types.Flag{}).Error; err != nil {
				return err
			}
			newCount--
		}

		flagged := s.cfg.FlagThreshold > 0 && newCount >= s.cfg.FlagThreshold
		if err := tx.Model(&types.Post{}).Where("id = ?", post.ID).UpdateColumns(map[string]interface{}{
			"flag_count": newCount,
			"is_flagged": flagged,
		}).Error; err != nil {
			return err
		}

		if flagged && !post.IsFlagged {
			post.FlagCount = uint32(newCount)
			post.IsFlagged = true
			crossed = &post
		}

		res = Result{Applied: true, Count: newCount, Cost: cost, Op: op}
		return nil
	})
	if err != nil {
		return Result{}, wrap(err)
	}
	if crossed != nil && s.onFlagged != nil {
		s.onFlagged(*crossed)
	}
	return res, nil
}

func (s *Service) verified(ctx context.Context, txDigest, payer string, amount int64) bool {
	return s.oracle.VerifyPayment(ctx, chain.PaymentClaim{
		TxDigest:     txDigest,
		PayerAddr:    payer,
		AmountKRN:    amount,
		CoinType:     s.cfg.CoinType,
		TreasuryAddr: s.cfg.TreasuryAddr,
	})
}

func validateToggle(postID uint64, addr, txDigest string) error {
	switch {
	case postID == 0:
		return errf(KindValidation, "missing post id")
	case addr == "":
		return errf(KindValidation, "missing address")
	case txDigest == "":
		return errf(KindValidation, "missing txDigest")
	}
	return nil
}

func lockPost(tx *gorm.DB, id uint64) (types.Post, error) {
	var post types.Post
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return post, errf(KindNotFound, "post not found")
	}
	return post, err
}

func starSnapshot(tx *gorm.DB, postID uint64, addr string) (Snapshot, error) {
	var total, own int64
	if err := tx.Model(&types.Star{}).Where("post_id = ?", postID).Count(&total).Error; err != nil {
		return Snapshot{}, err
	}
	if err := tx.Model(&types.Star{}).Where("post_id = ? AND addr = ?", postID, addr).Count(&own).Error; err != nil {
		return Snapshot{}, err
	}
	return Snapshot{TotalStars: int(total), OwnStars: int(own)}, nil
}

// consumeDigest burns the payment digest inside the toggle transaction: the
// unique key makes a replayed digest fail, and a rollback releases it again.
func consumeDigest(tx *gorm.DB, digest, addr string, amount int64) error {
	err := tx.Create(&types.ConsumedDigest{Digest: digest, Addr: addr, AmountKRN: amount}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errf(KindDigestUsed, "payment digest already consumed")
	}
	return err
}

func wrap(err error) error {
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return errf(KindStoreUnavailable, err.Error())
}
