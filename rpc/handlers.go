package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/lulo-labs/lulo-sc/core/state"
	"github.com/lulo-labs/lulo-sc/core/types"
	"github.com/lulo-labs/lulo-sc/crypto"
	"github.com/lulo-labs/lulo-sc/indexer"
	"github.com/lulo-labs/lulo-sc/native/derive"
	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/native/token"
)

func decodeParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single parameter object")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return err
	}
	return nil
}

// decodeOptionalParam accepts an absent or empty parameter list.
func decodeOptionalParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	return decodeParam(req, out)
}

func parseAddressField(name, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, fmt.Errorf("%s required", name)
	}
	parsed, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", name, err)
	}
	return parsed, nil
}

func parseIDField(value string) ([32]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [32]byte{}, fmt.Errorf("id required")
	}
	id, err := crypto.ParseHash32(value)
	if err != nil {
		return [32]byte{}, fmt.Errorf("id: %w", err)
	}
	return id, nil
}

// resolveMint accepts either an address or a registered currency symbol.
func (s *Server) resolveMint(value string) ([20]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return [20]byte{}, fmt.Errorf("mint required")
	}
	if parsed, err := crypto.ParseAddress(value); err == nil {
		return parsed, nil
	}
	return s.node.Currency(value)
}

func (s *Server) symbolOf(mint [20]byte) string {
	currencies, err := s.node.Currencies()
	if err != nil {
		return ""
	}
	for symbol, addr := range currencies {
		if addr == mint {
			return symbol
		}
	}
	return ""
}

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var tx types.Transaction
	if err := decodeParam(req, &tx); err != nil {
		s.invalidParams(w, req, "invalid transaction", err.Error())
		return
	}
	receipt, err := s.node.SubmitTransaction(r.Context(), &tx)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	result := StatusResult{
		ChainID:        s.node.ChainID(),
		Height:         s.node.Height(),
		Root:           s.node.Root().Hex(),
		GenesisApplied: s.node.GenesisApplied(),
	}
	if s.cfg.Journal != nil {
		result.JournalHead = s.cfg.Journal.Head()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	cfg, err := s.node.Config()
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, configResult(cfg))
}

type contractParams struct {
	ID string `json:"id"`
}

// handleGetContract reads the live contract from the ledger. Redeemed
// contracts no longer exist on the ledger and are served from the indexer
// when one is configured.
func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params contractParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	id, err := parseIDField(params.ID)
	if err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	contract, err := s.node.Contract(id)
	if err == nil {
		writeResult(w, req.ID, contractResult(contract))
		return
	}
	if !errors.Is(err, receivable.ErrContractNotFound) || s.cfg.Indexer == nil {
		s.fail(w, req, err)
		return
	}
	row, rowErr := s.cfg.Indexer.Get(r.Context(), hash32(id))
	if rowErr != nil {
		if errors.Is(rowErr, indexer.ErrNotFound) {
			s.fail(w, req, err)
			return
		}
		s.fail(w, req, rowErr)
		return
	}
	writeResult(w, req.ID, contractRowResult(row))
}

type vaultParams struct {
	Currency string `json:"currency"`
}

func (s *Server) vaultResult(vault *receivable.VaultPool) (VaultResult, error) {
	acct, err := s.node.TokenAccount(vault.Address)
	if err != nil {
		return VaultResult{}, err
	}
	return VaultResult{
		Currency:    addr(vault.Currency),
		Symbol:      s.symbolOf(vault.Currency),
		Address:     addr(vault.Address),
		Balance:     amount(acct.Amount),
		Outstanding: amount(vault.Outstanding),
		CreatedAt:   vault.CreatedAt,
		CreatedSlot: vault.CreatedSlot,
	}, nil
}

// handleGetVault returns one vault when a currency is given and every vault
// otherwise.
func (s *Server) handleGetVault(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultParams
	if err := decodeOptionalParam(req, &params); err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	if strings.TrimSpace(params.Currency) == "" {
		vaults, err := s.node.Vaults()
		if err != nil {
			s.fail(w, req, err)
			return
		}
		out := make([]VaultResult, 0, len(vaults))
		for _, vault := range vaults {
			res, err := s.vaultResult(vault)
			if err != nil {
				s.fail(w, req, err)
				return
			}
			out = append(out, res)
		}
		writeResult(w, req.ID, out)
		return
	}
	currency, err := s.resolveMint(params.Currency)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	vault, err := s.node.Vault(currency)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	res, err := s.vaultResult(vault)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, res)
}

type approverParams struct {
	Admin    string `json:"admin"`
	Delegate string `json:"delegate"`
}

func (s *Server) handleGetApprover(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params approverParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	admin, err := parseAddressField("admin", params.Admin)
	if err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	delegate, err := parseAddressField("delegate", params.Delegate)
	if err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	record, err := s.node.Approver(admin, delegate)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, approverResult(record))
}

type tokenAccountParams struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
}

// handleGetTokenAccount looks an account up by address, or by owner and
// mint for associated accounts. Associated accounts that were never opened
// report a zero balance with exists=false.
func (s *Server) handleGetTokenAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenAccountParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	if strings.TrimSpace(params.Address) != "" {
		address, err := parseAddressField("address", params.Address)
		if err != nil {
			s.invalidParams(w, req, "invalid params", err.Error())
			return
		}
		acct, err := s.node.TokenAccount(address)
		if err != nil {
			s.fail(w, req, err)
			return
		}
		writeResult(w, req.ID, tokenAccountResult(address, acct))
		return
	}
	owner, err := parseAddressField("owner", params.Owner)
	if err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	mint, err := s.resolveMint(params.Mint)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	address, acct, err := s.node.AssociatedAccount(owner, mint)
	if err != nil && !errors.Is(err, token.ErrAccountNotFound) {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, tokenAccountResult(address, acct))
}

type mintParams struct {
	Mint string `json:"mint"`
}

func (s *Server) handleGetMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params mintParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	mintAddr, err := s.resolveMint(params.Mint)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	mint, err := s.node.Mint(mintAddr)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, mintResult(mint))
}

type nonceParams struct {
	Address string `json:"address"`
}

func (s *Server) handleGetNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params nonceParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	address, err := parseAddressField("address", params.Address)
	if err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	nonce, err := s.node.Nonce(address)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"nonce": nonce})
}

type currencyResult struct {
	Symbol string `json:"symbol"`
	Mint   string `json:"mint"`
}

func (s *Server) handleGetCurrencies(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	currencies, err := s.node.Currencies()
	if err != nil {
		s.fail(w, req, err)
		return
	}
	out := make([]currencyResult, 0, len(currencies))
	for symbol, mint := range currencies {
		out = append(out, currencyResult{Symbol: symbol, Mint: addr(mint)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	writeResult(w, req.ID, out)
}

type deriveParams struct {
	Kind       string `json:"kind"`
	ContractID string `json:"contractId"`
	Currency   string `json:"currency"`
	Admin      string `json:"admin"`
	Delegate   string `json:"delegate"`
	Owner      string `json:"owner"`
	Mint       string `json:"mint"`
	Creator    string `json:"creator"`
	Sequence   uint64 `json:"sequence"`
	Symbol     string `json:"symbol"`
}

// handleDeriveAddress computes program-derived addresses so clients can
// address accounts before they exist.
func (s *Server) handleDeriveAddress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params deriveParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	result, err := s.derive(params)
	if err != nil {
		if errors.Is(err, errBadDeriveParams) {
			s.invalidParams(w, req, "invalid params", err.Error())
			return
		}
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, result)
}

var errBadDeriveParams = errors.New("rpc: invalid derivation parameters")

func badDerive(err error) error {
	return fmt.Errorf("%w: %v", errBadDeriveParams, err)
}

func (s *Server) derive(params deriveParams) (*DeriveResult, error) {
	var seeds [][]byte
	result := &DeriveResult{}
	switch strings.ToLower(strings.TrimSpace(params.Kind)) {
	case "state":
		seeds = derive.StateSeeds()
	case "mint":
		id, err := parseIDField(params.ContractID)
		if err != nil {
			return nil, badDerive(err)
		}
		seeds = derive.MintSeeds(id)
	case "vault":
		currency, err := s.resolveMint(params.Currency)
		if err != nil {
			return nil, err
		}
		seeds = derive.VaultSeeds(currency)
	case "approver":
		admin, err := parseAddressField("admin", params.Admin)
		if err != nil {
			return nil, badDerive(err)
		}
		delegate, err := parseAddressField("delegate", params.Delegate)
		if err != nil {
			return nil, badDerive(err)
		}
		seeds = derive.ApproverSeeds(admin, delegate)
	case "holding":
		owner, err := parseAddressField("owner", params.Owner)
		if err != nil {
			return nil, badDerive(err)
		}
		mint, err := s.resolveMint(params.Mint)
		if err != nil {
			return nil, err
		}
		seeds = derive.HoldingSeeds(owner, mint)
	case "contract":
		creator, err := parseAddressField("creator", params.Creator)
		if err != nil {
			return nil, badDerive(err)
		}
		seeds = derive.ContractSeeds(creator, params.Sequence)
		result.ID = hash32(derive.ContractID(creator, params.Sequence))
	case "currency":
		symbol := state.NormalizeSymbol(params.Symbol)
		if symbol == "" {
			return nil, badDerive(fmt.Errorf("symbol required"))
		}
		address, bump, err := derive.CurrencyAddress(symbol)
		if err != nil {
			return nil, err
		}
		result.Address, result.Bump = addr(address), bump
		return result, nil
	default:
		return nil, badDerive(fmt.Errorf("unknown kind %q", params.Kind))
	}
	address, bump, err := derive.Find(seeds...)
	if err != nil {
		return nil, err
	}
	result.Address, result.Bump = addr(address), bump
	return result, nil
}

type listParams struct {
	Creator   string `json:"creator"`
	Recipient string `json:"recipient"`
	PayMint   string `json:"payMint"`
	Status    string `json:"status"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if s.cfg.Indexer == nil {
		s.fail(w, req, errUnavailable)
		return
	}
	var params listParams
	if err := decodeOptionalParam(req, &params); err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	filter := indexer.Filter{Status: params.Status, Limit: params.Limit, Offset: params.Offset}
	if params.Creator != "" {
		creator, err := parseAddressField("creator", params.Creator)
		if err != nil {
			s.invalidParams(w, req, "invalid params", err.Error())
			return
		}
		filter.Creator = addr(creator)
	}
	if params.Recipient != "" {
		recipient, err := parseAddressField("recipient", params.Recipient)
		if err != nil {
			s.invalidParams(w, req, "invalid params", err.Error())
			return
		}
		filter.Recipient = addr(recipient)
	}
	if params.PayMint != "" {
		mint, err := s.resolveMint(params.PayMint)
		if err != nil {
			s.fail(w, req, err)
			return
		}
		filter.PayMint = addr(mint)
	}
	rows, err := s.cfg.Indexer.List(r.Context(), filter)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	out := ContractListResult{Contracts: make([]ContractResult, 0, len(rows))}
	for i := range rows {
		out.Contracts = append(out.Contracts, contractRowResult(&rows[i]))
	}
	writeResult(w, req.ID, out)
}

type eventsParams struct {
	Cursor uint64 `json:"cursor"`
	Limit  int    `json:"limit"`
}

func (s *Server) handleGetEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.cfg.Journal == nil {
		s.fail(w, req, errUnavailable)
		return
	}
	var params eventsParams
	if err := decodeOptionalParam(req, &params); err != nil {
		s.invalidParams(w, req, "invalid params", err.Error())
		return
	}
	records, next, err := s.cfg.Journal.Read(params.Cursor, params.Limit)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, EventsResult{Events: records, Next: next, Head: s.cfg.Journal.Head()})
}
