package rpc

import (
	"encoding/hex"
	"strconv"

	"github.com/lulo-labs/lulo-sc/core/events"
	"github.com/lulo-labs/lulo-sc/crypto"
	"github.com/lulo-labs/lulo-sc/indexer"
	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/native/token"
)

// Amounts are rendered as decimal strings so JavaScript clients keep full
// uint64 precision.

type StatusResult struct {
	ChainID        uint64 `json:"chainId"`
	Height         uint64 `json:"height"`
	Root           string `json:"root"`
	GenesisApplied bool   `json:"genesisApplied"`
	JournalHead    uint64 `json:"journalHead,omitempty"`
}

type ConfigResult struct {
	Admin     string `json:"admin"`
	Fee       string `json:"fee"`
	FeeScalar string `json:"feeScalar"`
}

type ContractResult struct {
	ID          string `json:"id"`
	Recipient   string `json:"recipient"`
	Creator     string `json:"creator"`
	Payer       string `json:"payer,omitempty"`
	Approver    string `json:"approver,omitempty"`
	Mint        string `json:"mint"`
	PayMint     string `json:"payMint"`
	AmountDue   string `json:"amountDue"`
	DueDate     int64  `json:"dueDate"`
	Status      string `json:"status"`
	CreateTs    int64  `json:"createTs"`
	CreateSlot  uint64 `json:"createSlot"`
	ApproveTs   int64  `json:"approveTs,omitempty"`
	ApproveSlot uint64 `json:"approveSlot,omitempty"`
	PayTs       int64  `json:"payTs,omitempty"`
	PaySlot     uint64 `json:"paySlot,omitempty"`
	// Holder is only known to the indexer and is set for redeemed contracts.
	Holder string `json:"holder,omitempty"`
	Source string `json:"source"`
}

type VaultResult struct {
	Currency    string `json:"currency"`
	Symbol      string `json:"symbol,omitempty"`
	Address     string `json:"address"`
	Balance     string `json:"balance"`
	Outstanding string `json:"outstanding"`
	CreatedAt   int64  `json:"createdAt"`
	CreatedSlot uint64 `json:"createdSlot"`
}

type ApproverResult struct {
	Address   string `json:"address"`
	Admin     string `json:"admin"`
	Delegate  string `json:"delegate"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"createdAt"`
	RevokedAt int64  `json:"revokedAt,omitempty"`
}

type MintResult struct {
	Address   string `json:"address"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
	Supply    string `json:"supply"`
}

type TokenAccountResult struct {
	Address string `json:"address"`
	Mint    string `json:"mint,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Amount  string `json:"amount"`
	Exists  bool   `json:"exists"`
}

type DeriveResult struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
	ID      string `json:"id,omitempty"`
}

type EventsResult struct {
	Events []events.Committed `json:"events"`
	Next   uint64             `json:"next"`
	Head   uint64             `json:"head"`
}

type ContractListResult struct {
	Contracts []ContractResult `json:"contracts"`
}

func addr(a [20]byte) string {
	return crypto.Address(a).String()
}

func optionalAddr(a [20]byte) string {
	if a == ([20]byte{}) {
		return ""
	}
	return addr(a)
}

func hash32(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func amount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func configResult(cfg *receivable.GlobalConfig) ConfigResult {
	return ConfigResult{Admin: addr(cfg.Admin), Fee: amount(cfg.Fee), FeeScalar: amount(cfg.FeeScalar)}
}

func contractResult(c *receivable.Contract) ContractResult {
	return ContractResult{
		ID:          hash32(c.ID),
		Recipient:   addr(c.Recipient),
		Creator:     addr(c.Creator),
		Payer:       optionalAddr(c.Payer),
		Approver:    optionalAddr(c.Approver),
		Mint:        addr(c.Mint),
		PayMint:     addr(c.PayMint),
		AmountDue:   amount(c.AmountDue),
		DueDate:     c.DueDate,
		Status:      c.Status.String(),
		CreateTs:    c.CreateTs,
		CreateSlot:  c.CreateSlot,
		ApproveTs:   c.ApproveTs,
		ApproveSlot: c.ApproveSlot,
		PayTs:       c.PayTs,
		PaySlot:     c.PaySlot,
		Source:      "ledger",
	}
}

func contractRowResult(row *indexer.ContractRow) ContractResult {
	return ContractResult{
		ID:         row.ID,
		Recipient:  row.Recipient,
		Creator:    row.Creator,
		Payer:      row.Payer,
		Approver:   row.Approver,
		Mint:       row.Mint,
		PayMint:    row.PayMint,
		AmountDue:  amount(row.AmountDue),
		DueDate:    row.DueDate,
		Status:     row.Status,
		CreateSlot: row.CreatedSlot,
		Holder:     row.Holder,
		Source:     "index",
	}
}

func approverResult(r *receivable.ApproverRecord) ApproverResult {
	return ApproverResult{
		Address:   addr(r.Address),
		Admin:     addr(r.Admin),
		Delegate:  addr(r.Delegate),
		Active:    r.Active(),
		CreatedAt: r.CreatedAt,
		RevokedAt: r.RevokedAt,
	}
}

func mintResult(m *token.Mint) MintResult {
	return MintResult{
		Address:   addr(m.Address),
		Authority: addr(m.Authority),
		Decimals:  m.Decimals,
		Supply:    amount(m.Supply),
	}
}

func tokenAccountResult(address [20]byte, acct *token.Account) TokenAccountResult {
	if acct == nil {
		return TokenAccountResult{Address: addr(address), Amount: "0"}
	}
	return TokenAccountResult{
		Address: addr(acct.Address),
		Mint:    addr(acct.Mint),
		Owner:   addr(acct.Owner),
		Amount:  amount(acct.Amount),
		Exists:  true,
	}
}
