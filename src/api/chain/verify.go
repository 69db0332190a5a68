package chain

import (
	"context"
	"log"
	"strconv"
	"strings"
)

// PaymentClaim is a transient assertion that a finalized transaction paid
// an exact KRN amount from a payer toward the treasury. It is checked once
// per toggle and never stored.
type PaymentClaim struct {
	TxDigest     string
	PayerAddr    string
	AmountKRN    int64
	CoinType     string
	TreasuryAddr string
}

// VerifyPayment resolves a claim against the chain. It fails closed: any
// RPC failure, timeout, or malformed response is a "not verified" verdict,
// never an error surfaced to the caller. A false verdict is final; callers
// must not retry it.
//
// Verification requires a committed transaction whose balance changes
// include one entry debiting the payer by exactly the claimed amount in
// the claimed coin type. The treasury credit is not cross-checked.
func (c *Client) VerifyPayment(ctx context.Context, claim PaymentClaim) bool {
	if claim.TxDigest == "" || claim.PayerAddr == "" || claim.AmountKRN <= 0 {
		return false
	}

	tx, err := c.GetTransactionBlock(ctx, claim.TxDigest)
	if err != nil {
		log.Printf("chain: verify %s: %v", claim.TxDigest, err)
		return false
	}

	if tx.Effects == nil || tx.Effects.Status.Status != ExecutionSuccess {
		return false
	}

	want := -claim.AmountKRN
	for _, bc := range tx.BalanceChanges {
		if !strings.EqualFold(bc.Owner.AddressOwner, claim.PayerAddr) {
			continue
		}
		if bc.CoinType != claim.CoinType {
			continue
		}
		amount, err := strconv.ParseInt(bc.Amount, 10, 64)
		if err != nil {
			continue
		}
		if amount == want {
			return true
		}
	}
	return false
}
