package state

import (
	"testing"

	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/native/token"
	"github.com/lulo-labs/lulo-sc/storage"
	"github.com/lulo-labs/lulo-sc/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func TestContractRoundTripAndIndex(t *testing.T) {
	mgr := newTestManager(t)
	c := &receivable.Contract{
		ID:        [32]byte{1},
		Recipient: [20]byte{2},
		Creator:   [20]byte{3},
		Mint:      [20]byte{4},
		MintBump:  254,
		PayMint:   [20]byte{5},
		AmountDue: 1000,
		DueDate:   1_700_086_400,
		CreateTs:  1_700_000_000,
		Status:    receivable.StatusApproved,
	}
	if err := mgr.ContractPut(c); err != nil {
		t.Fatalf("put contract: %v", err)
	}
	got, ok, err := mgr.ContractGet(c.ID)
	if err != nil || !ok {
		t.Fatalf("get contract: ok=%v err=%v", ok, err)
	}
	if *got != *c {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, c)
	}
	if err := mgr.ContractPut(c); err != nil {
		t.Fatalf("re-put contract: %v", err)
	}
	ids, err := mgr.ContractIDs()
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != c.ID {
		t.Fatalf("unexpected index %x", ids)
	}
	if err := mgr.ContractDelete(c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := mgr.ContractGet(c.ID); ok {
		t.Fatalf("contract still present after delete")
	}
	ids, _ = mgr.ContractIDs()
	if len(ids) != 0 {
		t.Fatalf("index not cleared: %x", ids)
	}
}

func TestContractSequenceAdvances(t *testing.T) {
	mgr := newTestManager(t)
	creator := [20]byte{9}
	for want := uint64(0); want < 3; want++ {
		got, err := mgr.ContractSequenceNext(creator)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if got != want {
			t.Fatalf("sequence %d, want %d", got, want)
		}
	}
	other, _ := mgr.ContractSequenceNext([20]byte{8})
	if other != 0 {
		t.Fatalf("sequences must be per creator")
	}
}

func TestConfigApproverVaultRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	if _, ok, err := mgr.ConfigGet(); ok || err != nil {
		t.Fatalf("expected empty config, ok=%v err=%v", ok, err)
	}
	cfg := &receivable.GlobalConfig{Admin: [20]byte{1}, Fee: 3, FeeScalar: 1000}
	if err := mgr.ConfigPut(cfg); err != nil {
		t.Fatalf("put config: %v", err)
	}
	gotCfg, ok, err := mgr.ConfigGet()
	if err != nil || !ok || *gotCfg != *cfg {
		t.Fatalf("config mismatch: %+v ok=%v err=%v", gotCfg, ok, err)
	}

	rec := &receivable.ApproverRecord{Address: [20]byte{7}, Bump: 253, Admin: [20]byte{1}, Delegate: [20]byte{2}, CreatedAt: 10, RevokedAt: 20}
	if err := mgr.ApproverPut(rec); err != nil {
		t.Fatalf("put approver: %v", err)
	}
	gotRec, ok, err := mgr.ApproverGet(rec.Address)
	if err != nil || !ok || *gotRec != *rec {
		t.Fatalf("approver mismatch: %+v ok=%v err=%v", gotRec, ok, err)
	}

	vault := &receivable.VaultPool{Currency: [20]byte{5}, Address: [20]byte{6}, Bump: 255, Outstanding: 42, CreatedAt: 11, CreatedSlot: 2}
	if err := mgr.VaultPut(vault); err != nil {
		t.Fatalf("put vault: %v", err)
	}
	gotVault, ok, err := mgr.VaultGet(vault.Currency)
	if err != nil || !ok || *gotVault != *vault {
		t.Fatalf("vault mismatch: %+v ok=%v err=%v", gotVault, ok, err)
	}
	currencies, err := mgr.VaultCurrencies()
	if err != nil || len(currencies) != 1 || currencies[0] != vault.Currency {
		t.Fatalf("vault index mismatch: %x err=%v", currencies, err)
	}
}

func TestTokenRecordsAndNonces(t *testing.T) {
	mgr := newTestManager(t)
	mint := &token.Mint{Address: [20]byte{1}, Authority: [20]byte{2}, Decimals: 6, Supply: 100}
	if err := mgr.TokenMintPut(mint); err != nil {
		t.Fatalf("put mint: %v", err)
	}
	gotMint, ok, err := mgr.TokenMintGet(mint.Address)
	if err != nil || !ok || *gotMint != *mint {
		t.Fatalf("mint mismatch: %+v ok=%v err=%v", gotMint, ok, err)
	}
	acct := &token.Account{Address: [20]byte{3}, Mint: mint.Address, Owner: [20]byte{4}, Amount: 100}
	if err := mgr.TokenAccountPut(acct); err != nil {
		t.Fatalf("put account: %v", err)
	}
	gotAcct, ok, err := mgr.TokenAccountGet(acct.Address)
	if err != nil || !ok || *gotAcct != *acct {
		t.Fatalf("account mismatch: %+v ok=%v err=%v", gotAcct, ok, err)
	}

	addr := [20]byte{0xAB}
	if n, _ := mgr.NonceGet(addr); n != 0 {
		t.Fatalf("fresh nonce %d", n)
	}
	if err := mgr.NonceSet(addr, 5); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	if n, _ := mgr.NonceGet(addr); n != 5 {
		t.Fatalf("nonce %d, want 5", n)
	}
}

func TestResetDiscardsManagerWrites(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.NonceSet([20]byte{1}, 1); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	if _, err := mgr.Trie().Commit(mgr.Trie().Root(), 1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mgr.NonceSet([20]byte{1}, 2); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	if err := mgr.Trie().Reset(mgr.Trie().Root()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := mgr.NonceGet([20]byte{1}); n != 1 {
		t.Fatalf("nonce %d after reset, want 1", n)
	}
}

func TestCurrencyRegistry(t *testing.T) {
	mgr := newTestManager(t)
	usdc := [20]byte{0xC0}
	if err := mgr.CurrencyPut(" usdc ", usdc); err != nil {
		t.Fatalf("put currency: %v", err)
	}
	if err := mgr.CurrencyPut("EURC", [20]byte{0xC1}); err != nil {
		t.Fatalf("put currency: %v", err)
	}
	got, ok, err := mgr.CurrencyGet("USDC")
	if err != nil || !ok || got != usdc {
		t.Fatalf("get currency: got=%x ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := mgr.CurrencyGet("JPYC"); ok {
		t.Fatalf("unknown symbol resolved")
	}
	symbols, err := mgr.Currencies()
	if err != nil {
		t.Fatalf("list currencies: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "USDC" || symbols[1] != "EURC" {
		t.Fatalf("unexpected symbols %v", symbols)
	}
}
