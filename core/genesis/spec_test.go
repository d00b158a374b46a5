package genesis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lulo-labs/lulo-sc/core/events"
	"github.com/lulo-labs/lulo-sc/core/state"
	"github.com/lulo-labs/lulo-sc/crypto"
	"github.com/lulo-labs/lulo-sc/native/derive"
	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/native/token"
	"github.com/lulo-labs/lulo-sc/storage"
	"github.com/lulo-labs/lulo-sc/storage/trie"
)

func testAddress(b byte) crypto.Address {
	var addr crypto.Address
	for i := range addr {
		addr[i] = b
	}
	return addr
}

var (
	issuer = testAddress(0x11)
	admin  = testAddress(0x22)
	alice  = testAddress(0x33)
)

func sampleGenesis() string {
	return fmt.Sprintf(`{
  "genesisTime": "2024-01-01T00:00:00Z",
  "chainId": 7001,
  "currencies": [
    {"symbol": "usdc", "decimals": 6, "authority": %q},
    {"symbol": "EURC", "decimals": 6, "authority": %q, "address": %q}
  ],
  "alloc": {
    %q: {"USDC": "5000", "eurc": "10"}
  },
  "protocol": {"admin": %q, "fee": 0, "feeScalar": 0, "vaults": ["USDC"]}
}`, issuer.String(), issuer.String(), testAddress(0xEE).Hex(), alice.String(), admin.String())
}

func newManager(t *testing.T) *state.Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return state.NewManager(tr)
}

func TestLoadSpecAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, []byte(sampleGenesis()), 0o644); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	spec, err := LoadSpec(path)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if id, ok := spec.ChainIDValue(); !ok || id != 7001 {
		t.Fatalf("unexpected chain id %d (%v)", id, ok)
	}
	if spec.GenesisTimestamp().Unix() != 1_704_067_200 {
		t.Fatalf("unexpected genesis time %v", spec.GenesisTimestamp())
	}

	mgr := newManager(t)
	if err := Apply(spec, mgr, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	usdc, ok, err := mgr.CurrencyGet("USDC")
	if err != nil || !ok {
		t.Fatalf("usdc not registered: %v", err)
	}
	derived, _, err := derive.CurrencyAddress("USDC")
	if err != nil {
		t.Fatalf("derive currency: %v", err)
	}
	if usdc != derived {
		t.Fatalf("usdc mint %x, want derived %x", usdc, derived)
	}
	eurc, _, _ := mgr.CurrencyGet("EURC")
	if eurc != testAddress(0xEE) {
		t.Fatalf("eurc mint %x not pinned", eurc)
	}

	ledger := token.NewLedger(mgr)
	holding, err := ledger.AssociatedAddress(alice, usdc)
	if err != nil {
		t.Fatalf("holding: %v", err)
	}
	acct, err := ledger.Account(holding)
	if err != nil {
		t.Fatalf("load alice account: %v", err)
	}
	if acct.Amount != 5000 {
		t.Fatalf("alice usdc balance %d, want 5000", acct.Amount)
	}

	cfg, ok, err := mgr.ConfigGet()
	if err != nil || !ok {
		t.Fatalf("config missing: %v", err)
	}
	if cfg.Admin != admin {
		t.Fatalf("unexpected admin %x", cfg.Admin)
	}
	vault, ok, err := mgr.VaultGet(usdc)
	if err != nil || !ok {
		t.Fatalf("usdc vault missing: %v", err)
	}
	if vault.CreatedAt != 1_704_067_200 || vault.Outstanding != 0 {
		t.Fatalf("unexpected vault %+v", vault)
	}
	if _, ok, _ := mgr.VaultGet(eurc); ok {
		t.Fatalf("eurc vault should not exist")
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	spec, err := ParseSpec([]byte(sampleGenesis()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	first := newManager(t)
	second := newManager(t)
	if err := Apply(spec, first, nil); err != nil {
		t.Fatalf("apply first: %v", err)
	}
	if err := Apply(spec, second, nil); err != nil {
		t.Fatalf("apply second: %v", err)
	}
	if first.Trie().Hash() != second.Trie().Hash() {
		t.Fatalf("genesis roots differ")
	}
}

func TestApplyEmitsBootstrapEvents(t *testing.T) {
	spec, err := ParseSpec([]byte(sampleGenesis()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var buf eventsRecorder
	if err := Apply(spec, newManager(t), &buf); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{receivable.EventTypeInitialized, receivable.EventTypeVaultCreated}
	if strings.Join(buf.types, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events %v", buf.types)
	}
}

func TestParseSpecRejectsInvalidFiles(t *testing.T) {
	cases := map[string]string{
		"unknown field":     `{"genesisTime":"2024-01-01T00:00:00Z","currencies":[],"extra":1}`,
		"missing time":      `{"currencies":[]}`,
		"missing authority": `{"genesisTime":"2024-01-01T00:00:00Z","currencies":[{"symbol":"USDC","decimals":6}]}`,
		"duplicate symbol": fmt.Sprintf(`{"genesisTime":"2024-01-01T00:00:00Z","currencies":[
			{"symbol":"USDC","decimals":6,"authority":%q},{"symbol":"usdc","decimals":6,"authority":%q}]}`,
			issuer.String(), issuer.String()),
		"undefined alloc currency": fmt.Sprintf(`{"genesisTime":"2024-01-01T00:00:00Z","currencies":[],
			"alloc":{%q:{"USDC":"1"}}}`, alice.String()),
		"bad amount": fmt.Sprintf(`{"genesisTime":"2024-01-01T00:00:00Z",
			"currencies":[{"symbol":"USDC","decimals":6,"authority":%q}],
			"alloc":{%q:{"USDC":"-1"}}}`, issuer.String(), alice.String()),
		"fee without scalar": fmt.Sprintf(`{"genesisTime":"2024-01-01T00:00:00Z","currencies":[],
			"protocol":{"admin":%q,"fee":5,"feeScalar":0}}`, admin.String()),
		"undefined vault": fmt.Sprintf(`{"genesisTime":"2024-01-01T00:00:00Z","currencies":[],
			"protocol":{"admin":%q,"vaults":["USDC"]}}`, admin.String()),
	}
	for name, doc := range cases {
		if _, err := ParseSpec([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

type eventsRecorder struct {
	types []string
}

func (r *eventsRecorder) Emit(evt events.Event) {
	r.types = append(r.types, evt.EventType())
}
