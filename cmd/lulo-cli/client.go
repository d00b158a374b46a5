package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lulo-labs/lulo-sc/core/types"
	"github.com/lulo-labs/lulo-sc/crypto"
	"github.com/lulo-labs/lulo-sc/rpc"
)

type rpcClient struct {
	endpoint string
	token    string
	http     *http.Client
}

func newRPCClient(endpoint, token string) *rpcClient {
	return &rpcClient{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/") + "/",
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// remoteError is a JSON-RPC error returned by the node.
type remoteError struct {
	Status int
	rpc.RPCError
}

func (e *remoteError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d (%s): %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d (%s)", e.Code, e.Message)
}

func (c *rpcClient) call(ctx context.Context, method string, param interface{}, requireAuth bool, out interface{}) error {
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if param != nil {
		req["params"] = []interface{}{param}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if requireAuth {
		if c.token == "" {
			return fmt.Errorf("%s requires %s to be set", method, rpcTokenEnv)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("POST %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpc.RPCError   `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return &remoteError{Status: resp.StatusCode, RPCError: *decoded.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *rpcClient) nonce(ctx context.Context, addr crypto.Address) (uint64, error) {
	var res struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := c.call(ctx, "lulo_getNonce", map[string]string{"address": addr.String()}, false, &res); err != nil {
		return 0, err
	}
	return res.Nonce, nil
}

func (c *rpcClient) contract(ctx context.Context, id string) (*rpc.ContractResult, error) {
	var res rpc.ContractResult
	if err := c.call(ctx, "lulo_getContract", map[string]string{"id": id}, false, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// resolveMint accepts a bech32 or hex address, or a registered symbol.
func (c *rpcClient) resolveMint(ctx context.Context, value string) ([20]byte, error) {
	if addr, err := crypto.ParseAddress(value); err == nil {
		return addr, nil
	}
	var res rpc.MintResult
	if err := c.call(ctx, "lulo_getMint", map[string]string{"mint": value}, false, &res); err != nil {
		return [20]byte{}, err
	}
	return crypto.ParseAddress(res.Address)
}

func (c *rpcClient) associated(ctx context.Context, owner crypto.Address, mint string) (*rpc.TokenAccountResult, error) {
	var res rpc.TokenAccountResult
	if err := c.call(ctx, "lulo_getTokenAccount", map[string]string{"owner": owner.String(), "mint": mint}, false, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// submit fills in the chain id and next nonce of the signer, signs and sends
// the transaction.
func (c *rpcClient) submit(ctx context.Context, key *crypto.PrivateKey, chainID uint64, txType types.TxType, payload interface{}) (*types.Receipt, error) {
	nonce, err := c.nonce(ctx, key.Address())
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	tx := &types.Transaction{ChainID: chainID, Type: txType, Nonce: nonce}
	if err := tx.SetPayload(payload); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	var receipt types.Receipt
	if err := c.call(ctx, "lulo_sendTransaction", tx, true, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}
