package chain

import (
	"encoding/json"
	"fmt"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
	ID      int             `json:"id"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ExecutionSuccess is the node's status sentinel for a committed transaction.
const ExecutionSuccess = "success"

// TransactionBlock is the subset of the node's transaction lookup response
// the ledger relies on. The node is untrusted; every field is optional and
// checked by the verifier rather than assumed present.
type TransactionBlock struct {
	Digest         string          `json:"digest"`
	Effects        *Effects        `json:"effects"`
	BalanceChanges []BalanceChange `json:"balanceChanges"`
}

type Effects struct {
	Status ExecutionStatus `json:"status"`
}

type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BalanceChange records one signed coin movement caused by a transaction.
// Amount is a decimal string on the wire; debits are negative.
type BalanceChange struct {
	Owner    Owner  `json:"owner"`
	CoinType string `json:"coinType"`
	Amount   string `json:"amount"`
}

type Owner struct {
	AddressOwner string `json:"AddressOwner"`
}
