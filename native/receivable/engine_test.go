package receivable

import (
	"bytes"
	"errors"
	"testing"

	"github.com/lulo-labs/lulo-sc/core/events"
	"github.com/lulo-labs/lulo-sc/core/types"
	"github.com/lulo-labs/lulo-sc/native/token"
)

type mockState struct {
	config    *GlobalConfig
	contracts map[[32]byte]*Contract
	sequences map[[20]byte]uint64
	approvers map[[20]byte]*ApproverRecord
	vaults    map[[20]byte]*VaultPool
	mints     map[[20]byte]*token.Mint
	accounts  map[[20]byte]*token.Account
}

func newMockState() *mockState {
	return &mockState{
		contracts: make(map[[32]byte]*Contract),
		sequences: make(map[[20]byte]uint64),
		approvers: make(map[[20]byte]*ApproverRecord),
		vaults:    make(map[[20]byte]*VaultPool),
		mints:     make(map[[20]byte]*token.Mint),
		accounts:  make(map[[20]byte]*token.Account),
	}
}

func (m *mockState) ConfigGet() (*GlobalConfig, bool, error) {
	if m.config == nil {
		return nil, false, nil
	}
	return m.config.Clone(), true, nil
}

func (m *mockState) ConfigPut(cfg *GlobalConfig) error {
	m.config = cfg.Clone()
	return nil
}

func (m *mockState) ContractGet(id [32]byte) (*Contract, bool, error) {
	c, ok := m.contracts[id]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (m *mockState) ContractPut(c *Contract) error {
	m.contracts[c.ID] = c.Clone()
	return nil
}

func (m *mockState) ContractDelete(id [32]byte) error {
	delete(m.contracts, id)
	return nil
}

func (m *mockState) ContractSequenceNext(creator [20]byte) (uint64, error) {
	seq := m.sequences[creator]
	m.sequences[creator] = seq + 1
	return seq, nil
}

func (m *mockState) ApproverGet(addr [20]byte) (*ApproverRecord, bool, error) {
	r, ok := m.approvers[addr]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (m *mockState) ApproverPut(r *ApproverRecord) error {
	m.approvers[r.Address] = r.Clone()
	return nil
}

func (m *mockState) VaultGet(currency [20]byte) (*VaultPool, bool, error) {
	v, ok := m.vaults[currency]
	if !ok {
		return nil, false, nil
	}
	return v.Clone(), true, nil
}

func (m *mockState) VaultPut(v *VaultPool) error {
	m.vaults[v.Currency] = v.Clone()
	return nil
}

func (m *mockState) TokenMintGet(addr [20]byte) (*token.Mint, bool, error) {
	mint, ok := m.mints[addr]
	if !ok {
		return nil, false, nil
	}
	return mint.Clone(), true, nil
}

func (m *mockState) TokenMintPut(mint *token.Mint) error {
	m.mints[mint.Address] = mint.Clone()
	return nil
}

func (m *mockState) TokenAccountGet(addr [20]byte) (*token.Account, bool, error) {
	acct, ok := m.accounts[addr]
	if !ok {
		return nil, false, nil
	}
	return acct.Clone(), true, nil
}

func (m *mockState) TokenAccountPut(acct *token.Account) error {
	m.accounts[acct.Address] = acct.Clone()
	return nil
}

type capturingEmitter struct {
	events []*types.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	if p, ok := evt.(interface{ Event() *types.Event }); ok {
		c.events = append(c.events, p.Event())
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

const testNow int64 = 1_700_000_000

var (
	adminAddr     = newTestAddress(0x01)
	creatorAddr   = newTestAddress(0x02)
	recipientAddr = newTestAddress(0x03)
	payerAddr     = newTestAddress(0x04)
	delegateAddr  = newTestAddress(0x05)
	strangerAddr  = newTestAddress(0x06)
	currencyAddr  = newTestAddress(0xC0)
	issuerAddr    = newTestAddress(0xC1)
)

type fixture struct {
	engine  *Engine
	state   *mockState
	emitter *capturingEmitter
	clock   *Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := newMockState()
	emitter := &capturingEmitter{}
	clock := &Clock{Timestamp: testNow, Slot: 1}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	engine.SetClock(func() Clock { return *clock })

	if _, err := engine.Ledger().CreateMint(currencyAddr, issuerAddr, 6); err != nil {
		t.Fatalf("create currency: %v", err)
	}
	if _, _, err := engine.Initialize(adminAddr, 0, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := engine.CreateVault(adminAddr, currencyAddr); err != nil {
		t.Fatalf("create vault: %v", err)
	}
	return &fixture{engine: engine, state: state, emitter: emitter, clock: clock}
}

func (f *fixture) fund(t *testing.T, owner [20]byte, amount uint64) [20]byte {
	t.Helper()
	acct, err := f.engine.Ledger().EnsureAssociatedAccount(owner, currencyAddr)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	if amount > 0 {
		if err := f.engine.Ledger().MintTo(currencyAddr, acct.Address, token.SignerAuthority(issuerAddr), amount); err != nil {
			t.Fatalf("fund account: %v", err)
		}
	}
	return acct.Address
}

func (f *fixture) create(t *testing.T, amount uint64) *Contract {
	t.Helper()
	contract, err := f.engine.Create(creatorAddr, recipientAddr, currencyAddr, amount, testNow+86400)
	if err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return contract
}

func (f *fixture) balance(t *testing.T, addr [20]byte) uint64 {
	t.Helper()
	acct, err := f.engine.Ledger().Account(addr)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	return acct.Amount
}

func (f *fixture) vault(t *testing.T) *VaultPool {
	t.Helper()
	vault, ok, _ := f.state.VaultGet(currencyAddr)
	if !ok {
		t.Fatalf("vault missing")
	}
	return vault
}

func (f *fixture) holding(t *testing.T, owner [20]byte, c *Contract) [20]byte {
	t.Helper()
	addr, err := f.engine.Ledger().AssociatedAddress(owner, c.Mint)
	if err != nil {
		t.Fatalf("holding address: %v", err)
	}
	return addr
}

func TestCreateRejectsPastDueDate(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Create(creatorAddr, recipientAddr, currencyAddr, 1000, testNow+86400); err != nil {
		t.Fatalf("future due date should succeed: %v", err)
	}
	if _, err := f.engine.Create(creatorAddr, recipientAddr, currencyAddr, 1000, testNow-86400); !errors.Is(err, ErrInvalidDueDate) {
		t.Fatalf("expected ErrInvalidDueDate, got %v", err)
	}
	if _, err := f.engine.Create(creatorAddr, recipientAddr, currencyAddr, 1000, testNow); !errors.Is(err, ErrInvalidDueDate) {
		t.Fatalf("due date equal to now must fail, got %v", err)
	}
}

func TestCreateValidatesAmountAndVault(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Create(creatorAddr, recipientAddr, currencyAddr, 0, testNow+10); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.engine.Create(creatorAddr, recipientAddr, newTestAddress(0xEE), 10, testNow+10); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("expected ErrVaultNotFound, got %v", err)
	}
	if _, err := f.engine.Create(creatorAddr, [20]byte{}, currencyAddr, 10, testNow+10); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
}

func TestCreateMintsSingleRepresentativeToken(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, 1000)
	second := f.create(t, 1000)
	if first.ID == second.ID {
		t.Fatalf("contract ids must be unique")
	}
	if first.Mint == second.Mint {
		t.Fatalf("representative mints must be unique per contract")
	}
	for _, c := range []*Contract{first, second} {
		mint, err := f.engine.Ledger().Mint(c.Mint)
		if err != nil {
			t.Fatalf("load mint: %v", err)
		}
		if mint.Supply != 1 || mint.Decimals != 0 || mint.Authority != c.Mint {
			t.Fatalf("unexpected mint %+v", mint)
		}
		if got := f.balance(t, f.holding(t, creatorAddr, c)); got != 1 {
			t.Fatalf("creator should hold exactly one token, got %d", got)
		}
		if c.Status != StatusCreated || c.Approved() {
			t.Fatalf("unexpected initial contract %+v", c)
		}
	}
	if f.emitter.events[len(f.emitter.events)-1].Type != EventTypeCreated {
		t.Fatalf("expected created event")
	}
}

func TestInitializeRequiresScalarForFee(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.engine.Initialize(adminAddr, 5, 0); !errors.Is(err, ErrInvalidFeeScalar) {
		t.Fatalf("expected ErrInvalidFeeScalar, got %v", err)
	}
	cfg, replaced, err := f.engine.Initialize(strangerAddr, 5, 1000)
	if err != nil {
		t.Fatalf("re-initialize: %v", err)
	}
	if !replaced || cfg.Admin != strangerAddr {
		t.Fatalf("expected overwrite with new admin, got %+v replaced=%v", cfg, replaced)
	}
}

func TestCreateVaultAdminOnlyAndOnce(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.CreateVault(adminAddr, currencyAddr); !errors.Is(err, ErrVaultExists) {
		t.Fatalf("expected ErrVaultExists, got %v", err)
	}
	other := newTestAddress(0xC2)
	if _, err := f.engine.Ledger().CreateMint(other, issuerAddr, 2); err != nil {
		t.Fatalf("create mint: %v", err)
	}
	if _, err := f.engine.CreateVault(strangerAddr, other); !errors.Is(err, ErrUnauthorizedAdmin) {
		t.Fatalf("expected ErrUnauthorizedAdmin, got %v", err)
	}
	if _, err := f.engine.CreateVault(adminAddr, newTestAddress(0xC3)); !errors.Is(err, token.ErrMintNotFound) {
		t.Fatalf("expected ErrMintNotFound, got %v", err)
	}
	vault, err := f.engine.CreateVault(adminAddr, other)
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	acct, err := f.engine.Ledger().Account(vault.Address)
	if err != nil {
		t.Fatalf("vault account: %v", err)
	}
	if acct.Owner != vault.Address || acct.Mint != other {
		t.Fatalf("vault account must be self-owned: %+v", acct)
	}
}

func TestCreateVaultRequiresInitialize(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	if _, err := engine.CreateVault(adminAddr, currencyAddr); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestApproveByRecipientOnce(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 1000)
	f.clock.Slot = 7
	approved, err := f.engine.Approve(recipientAddr, c.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != StatusApproved || approved.Approver != recipientAddr || approved.ApproveSlot != 7 {
		t.Fatalf("unexpected approved contract %+v", approved)
	}
	if _, err := f.engine.Approve(recipientAddr, c.ID); !errors.Is(err, ErrExistingApproval) {
		t.Fatalf("expected ErrExistingApproval, got %v", err)
	}
}

func TestApproveByDelegate(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 1000)
	if _, err := f.engine.SetApprover(recipientAddr, delegateAddr); err != nil {
		t.Fatalf("set approver: %v", err)
	}
	approved, err := f.engine.Approve(delegateAddr, c.ID)
	if err != nil {
		t.Fatalf("delegate approve: %v", err)
	}
	if approved.Status != StatusApproved || approved.Approver != delegateAddr {
		t.Fatalf("unexpected contract %+v", approved)
	}
}

func TestApproveRejectsThirdParty(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 1000)
	// A delegation granted by someone other than the recipient does not count.
	if _, err := f.engine.SetApprover(creatorAddr, strangerAddr); err != nil {
		t.Fatalf("set approver: %v", err)
	}
	if _, err := f.engine.Approve(strangerAddr, c.ID); !errors.Is(err, ErrUnauthorizedApprover) {
		t.Fatalf("expected ErrUnauthorizedApprover, got %v", err)
	}
	stored, _, _ := f.state.ContractGet(c.ID)
	if stored.Approved() || stored.Status != StatusCreated {
		t.Fatalf("failed approval mutated contract: %+v", stored)
	}
}

func TestSetApproverRejectsDuplicatesAndSelf(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetApprover(recipientAddr, delegateAddr); err != nil {
		t.Fatalf("set approver: %v", err)
	}
	if _, err := f.engine.SetApprover(recipientAddr, delegateAddr); !errors.Is(err, ErrApproverExists) {
		t.Fatalf("expected ErrApproverExists, got %v", err)
	}
	if _, err := f.engine.SetApprover(recipientAddr, recipientAddr); !errors.Is(err, ErrInvalidDelegate) {
		t.Fatalf("expected ErrInvalidDelegate, got %v", err)
	}
	if _, err := f.engine.SetApprover(recipientAddr, [20]byte{}); !errors.Is(err, ErrInvalidDelegate) {
		t.Fatalf("expected ErrInvalidDelegate for zero delegate, got %v", err)
	}
}

func TestRevokedDelegateCannotApprove(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, 1000)
	second := f.create(t, 1000)
	if _, err := f.engine.SetApprover(recipientAddr, delegateAddr); err != nil {
		t.Fatalf("set approver: %v", err)
	}
	if _, err := f.engine.Approve(delegateAddr, first.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.engine.RevokeApprover(recipientAddr, delegateAddr); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := f.engine.RevokeApprover(recipientAddr, delegateAddr); !errors.Is(err, ErrApproverNotFound) {
		t.Fatalf("expected ErrApproverNotFound, got %v", err)
	}
	if _, err := f.engine.Approve(delegateAddr, second.ID); !errors.Is(err, ErrUnauthorizedApprover) {
		t.Fatalf("expected ErrUnauthorizedApprover after revoke, got %v", err)
	}
	stored, _, _ := f.state.ContractGet(first.ID)
	if stored.Approver != delegateAddr {
		t.Fatalf("existing approval must survive revocation")
	}
	if _, err := f.engine.SetApprover(recipientAddr, delegateAddr); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if _, err := f.engine.Approve(delegateAddr, second.ID); err != nil {
		t.Fatalf("approve after reactivation: %v", err)
	}
}

func TestPayMovesAmountIntoVault(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 1000)
	source := f.fund(t, payerAddr, 1500)
	f.clock.Slot = 9
	paid, err := f.engine.Pay(payerAddr, c.ID, source)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != StatusPaid || paid.Payer != payerAddr || paid.PaySlot != 9 || paid.PayTs != testNow {
		t.Fatalf("unexpected paid contract %+v", paid)
	}
	vault := f.vault(t)
	if got := f.balance(t, vault.Address); got != 1000 {
		t.Fatalf("vault balance %d, want 1000", got)
	}
	if vault.Outstanding != 1000 {
		t.Fatalf("outstanding %d, want 1000", vault.Outstanding)
	}
	if got := f.balance(t, source); got != 500 {
		t.Fatalf("payer balance %d, want 500", got)
	}
	if _, err := f.engine.Pay(payerAddr, c.ID, source); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestPayInsufficientFundsMutatesNothing(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 1000)
	source := f.fund(t, payerAddr, 999)
	if _, err := f.engine.Pay(payerAddr, c.ID, source); !errors.Is(err, token.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	stored, _, _ := f.state.ContractGet(c.ID)
	if stored.Status != StatusCreated || stored.Payer != ([20]byte{}) {
		t.Fatalf("contract mutated by failed pay: %+v", stored)
	}
	vault := f.vault(t)
	if vault.Outstanding != 0 || f.balance(t, vault.Address) != 0 {
		t.Fatalf("vault mutated by failed pay")
	}
	if got := f.balance(t, source); got != 999 {
		t.Fatalf("payer balance changed to %d", got)
	}
}

func TestPayRejectsWrongCurrencySource(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 10)
	other := newTestAddress(0xC2)
	if _, err := f.engine.Ledger().CreateMint(other, issuerAddr, 6); err != nil {
		t.Fatalf("create mint: %v", err)
	}
	acct, err := f.engine.Ledger().EnsureAssociatedAccount(payerAddr, other)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	if err := f.engine.Ledger().MintTo(other, acct.Address, token.SignerAuthority(issuerAddr), 100); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := f.engine.Pay(payerAddr, c.ID, acct.Address); !errors.Is(err, token.ErrMintMismatch) {
		t.Fatalf("expected ErrMintMismatch, got %v", err)
	}
}

func TestPayRequiresApprovalWhenConfigured(t *testing.T) {
	f := newFixture(t)
	f.engine.SetRequireApproval(true)
	c := f.create(t, 100)
	source := f.fund(t, payerAddr, 100)
	if _, err := f.engine.Pay(payerAddr, c.ID, source); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	if _, err := f.engine.Approve(recipientAddr, c.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.engine.Pay(payerAddr, c.ID, source); err != nil {
		t.Fatalf("pay after approval: %v", err)
	}
}

func TestApproveAfterPayKeepsPaidStatus(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 100)
	source := f.fund(t, payerAddr, 100)
	if _, err := f.engine.Pay(payerAddr, c.ID, source); err != nil {
		t.Fatalf("pay: %v", err)
	}
	approved, err := f.engine.Approve(recipientAddr, c.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != StatusPaid {
		t.Fatalf("status regressed to %s", approved.Status)
	}
}

func TestRedeemBurnsTokenAndRemovesRecord(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 1000)
	source := f.fund(t, payerAddr, 1000)
	if _, err := f.engine.Pay(payerAddr, c.ID, source); err != nil {
		t.Fatalf("pay: %v", err)
	}
	holding := f.holding(t, creatorAddr, c)
	dest := f.fund(t, creatorAddr, 0)
	if got := f.balance(t, holding); got != 1 {
		t.Fatalf("pre-redeem holding %d, want 1", got)
	}
	if _, err := f.engine.Redeem(creatorAddr, c.ID, creatorAddr, holding, dest); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if got := f.balance(t, holding); got != 0 {
		t.Fatalf("post-redeem holding %d, want 0", got)
	}
	if got := f.balance(t, dest); got != 1000 {
		t.Fatalf("destination balance %d, want 1000", got)
	}
	if _, err := f.engine.Contract(c.ID); !errors.Is(err, ErrContractNotFound) {
		t.Fatalf("record should be gone, got %v", err)
	}
	mint, _ := f.engine.Ledger().Mint(c.Mint)
	if mint.Supply != 0 {
		t.Fatalf("representative supply %d, want 0", mint.Supply)
	}
	if _, err := f.engine.Redeem(creatorAddr, c.ID, creatorAddr, holding, dest); !errors.Is(err, ErrContractNotFound) {
		t.Fatalf("second redeem must fail with ErrContractNotFound, got %v", err)
	}
	last := f.emitter.events[len(f.emitter.events)-1]
	if last.Type != EventTypeRedeemed {
		t.Fatalf("expected redeemed event, got %s", last.Type)
	}
}

func TestRedeemPreconditions(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 50)
	holding := f.holding(t, creatorAddr, c)
	dest := f.fund(t, creatorAddr, 0)
	if _, err := f.engine.Redeem(creatorAddr, c.ID, creatorAddr, holding, dest); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("expected ErrNotPaid, got %v", err)
	}
	source := f.fund(t, payerAddr, 50)
	if _, err := f.engine.Pay(payerAddr, c.ID, source); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := f.engine.Redeem(creatorAddr, c.ID, strangerAddr, holding, dest); !errors.Is(err, ErrCreatorMismatch) {
		t.Fatalf("expected ErrCreatorMismatch, got %v", err)
	}
	if _, err := f.engine.Redeem(strangerAddr, c.ID, creatorAddr, holding, dest); !errors.Is(err, ErrInvalidHolding) {
		t.Fatalf("expected ErrInvalidHolding for non-owner, got %v", err)
	}
	if _, err := f.engine.Redeem(creatorAddr, c.ID, creatorAddr, source, dest); !errors.Is(err, ErrInvalidHolding) {
		t.Fatalf("expected ErrInvalidHolding for wrong mint, got %v", err)
	}
	if _, err := f.engine.Redeem(creatorAddr, c.ID, creatorAddr, newTestAddress(0x77), dest); !errors.Is(err, ErrInvalidHolding) {
		t.Fatalf("expected ErrInvalidHolding for missing account, got %v", err)
	}
}

func TestRedeemRejectsVaultAsDestination(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 1000)
	source := f.fund(t, payerAddr, 1000)
	if _, err := f.engine.Pay(payerAddr, c.ID, source); err != nil {
		t.Fatalf("pay: %v", err)
	}
	vault := f.vault(t)
	holding := f.holding(t, creatorAddr, c)
	if _, err := f.engine.Redeem(creatorAddr, c.ID, creatorAddr, holding, vault.Address); !errors.Is(err, ErrInvalidDestination) {
		t.Fatalf("expected ErrInvalidDestination, got %v", err)
	}
	vault = f.vault(t)
	if got := f.balance(t, vault.Address); got != 1000 || vault.Outstanding != 1000 {
		t.Fatalf("vault balance %d outstanding %d, want 1000", got, vault.Outstanding)
	}
	if got := f.balance(t, holding); got != 1 {
		t.Fatalf("representative token burned on rejected redeem")
	}
	if stored, err := f.engine.Contract(c.ID); err != nil || stored.Status != StatusPaid {
		t.Fatalf("contract changed: %+v %v", stored, err)
	}
}

func TestTransferredTokenRedeemableByHolder(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, 300)
	source := f.fund(t, payerAddr, 300)
	if _, err := f.engine.Pay(payerAddr, c.ID, source); err != nil {
		t.Fatalf("pay: %v", err)
	}
	financier := newTestAddress(0x0F)
	if err := f.engine.TransferTokens(creatorAddr, c.Mint, financier, 1); err != nil {
		t.Fatalf("transfer representative: %v", err)
	}
	creatorHolding := f.holding(t, creatorAddr, c)
	if _, err := f.engine.Redeem(creatorAddr, c.ID, creatorAddr, creatorHolding, source); !errors.Is(err, ErrInvalidHolding) {
		t.Fatalf("creator no longer holds the token, got %v", err)
	}
	dest := f.fund(t, financier, 0)
	if _, err := f.engine.Redeem(financier, c.ID, creatorAddr, f.holding(t, financier, c), dest); err != nil {
		t.Fatalf("financier redeem: %v", err)
	}
	if got := f.balance(t, dest); got != 300 {
		t.Fatalf("financier balance %d, want 300", got)
	}
}

func TestVaultConservationAcrossPayAndRedeem(t *testing.T) {
	f := newFixture(t)
	amounts := []uint64{100, 250, 75, 1000}
	contracts := make([]*Contract, len(amounts))
	var total uint64
	for i, amt := range amounts {
		contracts[i] = f.create(t, amt)
		total += amt
	}
	source := f.fund(t, payerAddr, total)
	dest := f.fund(t, creatorAddr, 0)

	check := func(label string) {
		t.Helper()
		var expected uint64
		for _, c := range contracts {
			stored, ok, _ := f.state.ContractGet(c.ID)
			if ok && stored.Status == StatusPaid {
				expected += stored.AmountDue
			}
		}
		vault := f.vault(t)
		if got := f.balance(t, vault.Address); got != expected || vault.Outstanding != expected {
			t.Fatalf("%s: vault balance %d outstanding %d, want %d", label, got, vault.Outstanding, expected)
		}
	}

	for _, i := range []int{0, 2, 3} {
		if _, err := f.engine.Pay(payerAddr, contracts[i].ID, source); err != nil {
			t.Fatalf("pay %d: %v", i, err)
		}
		check("after pay")
	}
	for _, i := range []int{2, 0} {
		c := contracts[i]
		if _, err := f.engine.Redeem(creatorAddr, c.ID, creatorAddr, f.holding(t, creatorAddr, c), dest); err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
		check("after redeem")
	}
	if _, err := f.engine.Pay(payerAddr, contracts[1].ID, source); err != nil {
		t.Fatalf("pay 1: %v", err)
	}
	check("final")
}

func TestOperationsWithoutState(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Approve(recipientAddr, [32]byte{}); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
}

func TestQueriesReportMissingRecords(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Config(); err != nil {
		t.Fatalf("config: %v", err)
	}
	if vault, err := f.engine.Vault(currencyAddr); err != nil || vault.Currency != currencyAddr {
		t.Fatalf("vault: %+v %v", vault, err)
	}
	if _, err := f.engine.Vault(strangerAddr); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("expected ErrVaultNotFound, got %v", err)
	}
	if _, err := f.engine.Approver(recipientAddr, delegateAddr); !errors.Is(err, ErrApproverNotFound) {
		t.Fatalf("expected ErrApproverNotFound, got %v", err)
	}
	if _, err := f.engine.SetApprover(recipientAddr, delegateAddr); err != nil {
		t.Fatalf("set approver: %v", err)
	}
	record, err := f.engine.Approver(recipientAddr, delegateAddr)
	if err != nil || !record.Active() {
		t.Fatalf("approver: %+v %v", record, err)
	}
	if _, err := f.engine.Contract([32]byte{0xAB}); !errors.Is(err, ErrContractNotFound) {
		t.Fatalf("expected ErrContractNotFound, got %v", err)
	}
}
