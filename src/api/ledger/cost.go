package ledger

// Op identifies a toggle operation for pricing and event reporting.
type Op string

const (
	OpStarAdd    Op = "star_add"
	OpStarRemove Op = "star_remove"
	OpStarEvict  Op = "star_evict" // moderation: remove another address's star
	OpFlagAdd    Op = "flag_add"
	OpFlagRemove Op = "flag_remove"
)

// Snapshot is a post's star state read under the row lock immediately
// before an operation. Costs are a pure function of it.
type Snapshot struct {
	TotalStars int // all stars currently on the post
	OwnStars   int // stars held by the acting address (0 or 1)
}

// StarCost prices a star operation in whole KRN.
//
// Adding the first star costs 1; each later star costs one more than the
// current total. Removing your own star costs double the stars you hold.
// Evicting someone else's star costs double the post's entire star count,
// a deliberately punitive rate.
//
// State conflicts are rejected here, before any payment is examined.
func StarCost(op Op, s Snapshot) (int64, error) {
	switch op {
	case OpStarAdd:
		if s.OwnStars > 0 {
			return 0, errf(KindAlreadyStarred, "address already starred this post")
		}
		if s.TotalStars == 0 {
			return 1, nil
		}
		return int64(s.TotalStars) + 1, nil

	case OpStarRemove:
		if s.OwnStars == 0 {
			return 0, errf(KindNothingToRemove, "no star to remove")
		}
		return 2 * int64(s.OwnStars), nil

	case OpStarEvict:
		if s.TotalStars-s.OwnStars == 0 {
			return 0, errf(KindNoTarget, "no other address holds a star on this post")
		}
		return 2 * int64(s.TotalStars), nil
	}
	return 0, errf(KindValidation, "unknown star operation")
}

// FlagCost prices a flag operation: a fixed configured rate, with the same
// toggle-shaped conflict checks as stars.
func FlagCost(op Op, price int64, ownFlags int) (int64, error) {
	switch op {
	case OpFlagAdd:
		if ownFlags > 0 {
			return 0, errf(KindAlreadyStarred, "address already flagged this post")
		}
		return price, nil
	case OpFlagRemove:
		if ownFlags == 0 {
			return 0, errf(KindNothingToRemove, "no flag to remove")
		}
		return price, nil
	}
	return 0, errf(KindValidation, "unknown flag operation")
}
