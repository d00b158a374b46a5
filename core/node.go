// Package core wires the state trie, the receivable engine and the event
// sinks into a node that executes signed transactions one at a time.
package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "github.com/lulo-labs/lulo-sc/core/errors"
	"github.com/lulo-labs/lulo-sc/core/events"
	"github.com/lulo-labs/lulo-sc/core/genesis"
	"github.com/lulo-labs/lulo-sc/core/state"
	"github.com/lulo-labs/lulo-sc/core/types"
	"github.com/lulo-labs/lulo-sc/crypto"
	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/observability"
	"github.com/lulo-labs/lulo-sc/storage"
	"github.com/lulo-labs/lulo-sc/storage/trie"
)

var headKey = []byte("lulo/head")

// Config holds the node parameters that affect transaction validity.
type Config struct {
	ChainID         uint64
	RequireApproval bool
}

// Option customises a node at construction time.
type Option func(*Node)

// WithClock overrides the wall clock used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(n *Node) {
		if now != nil {
			n.now = now
		}
	}
}

// WithLogger sets the structured logger of the node.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

type head struct {
	Root    common.Hash
	Height  uint64
	Genesis bool
}

// Node executes transactions serially. Each transaction is atomic: its
// writes are committed to the trie together with the sender nonce, or the
// trie is reset to the previous root and nothing is published.
type Node struct {
	mu sync.Mutex

	db      storage.Database
	trie    *trie.Trie
	state   *state.Manager
	engine  *receivable.Engine
	buffer  *events.Buffer
	cfg     Config
	head    head
	sinks   []events.Sink
	now     func() time.Time
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.LedgerMetrics
}

// NewNode opens the ledger stored in db, resuming from the persisted head
// when one exists.
func NewNode(db storage.Database, cfg Config, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database must not be nil")
	}
	n := &Node{
		db:      db,
		buffer:  &events.Buffer{},
		cfg:     cfg,
		now:     time.Now,
		logger:  slog.Default(),
		tracer:  otel.Tracer("lulo/node"),
		metrics: observability.Ledger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	h, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	var root []byte
	if h.Root != (common.Hash{}) {
		root = h.Root.Bytes()
	}
	tr, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("node: open state trie: %w", err)
	}
	n.trie = tr
	n.head = h
	n.head.Root = tr.Root()
	n.state = state.NewManager(tr)
	n.engine = receivable.NewEngine()
	n.engine.SetState(n.state)
	n.engine.SetEmitter(n.buffer)
	n.engine.SetRequireApproval(cfg.RequireApproval)
	n.metrics.SetHeight(n.head.Height)
	return n, nil
}

func loadHead(db storage.Database) (head, error) {
	ok, err := db.Has(headKey)
	if err != nil {
		return head{}, fmt.Errorf("node: read head: %w", err)
	}
	if !ok {
		return head{}, nil
	}
	raw, err := db.Get(headKey)
	if err != nil {
		return head{}, fmt.Errorf("node: read head: %w", err)
	}
	var h head
	if err := rlp.DecodeBytes(raw, &h); err != nil {
		return head{}, fmt.Errorf("node: decode head: %w", err)
	}
	return h, nil
}

func (n *Node) storeHead(h head) error {
	encoded, err := rlp.EncodeToBytes(&h)
	if err != nil {
		return err
	}
	return n.db.Put(headKey, encoded)
}

// AddSink registers a consumer of committed events. Sinks are called in
// registration order while the node lock is held, so they observe events in
// commit order.
func (n *Node) AddSink(sink events.Sink) {
	if sink == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, sink)
}

// GenesisApplied reports whether the ledger has been seeded.
func (n *Node) GenesisApplied() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head.Genesis
}

// ApplyGenesis seeds an empty ledger. It fails with ErrGenesisApplied when a
// genesis has already been committed.
func (n *Node) ApplyGenesis(spec *genesis.Spec) error {
	if spec == nil {
		return fmt.Errorf("%w: nil spec", coreerrors.ErrInvalidGenesis)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.head.Genesis {
		return coreerrors.ErrGenesisApplied
	}
	if id, ok := spec.ChainIDValue(); ok && id != n.cfg.ChainID {
		return fmt.Errorf("%w: chain id %d does not match node chain id %d", coreerrors.ErrInvalidGenesis, id, n.cfg.ChainID)
	}
	parent := n.trie.Root()
	n.buffer.Reset()
	defer n.buffer.Reset()
	if err := genesis.Apply(spec, n.state, n.buffer); err != nil {
		n.rollback(parent)
		return fmt.Errorf("%w: %v", coreerrors.ErrInvalidGenesis, err)
	}
	root, err := n.trie.Commit(parent, 0)
	if err != nil {
		n.rollback(parent)
		return fmt.Errorf("node: commit genesis: %w", err)
	}
	next := head{Root: root, Height: n.head.Height, Genesis: true}
	if err := n.storeHead(next); err != nil {
		n.rollback(parent)
		return fmt.Errorf("node: persist head: %w", err)
	}
	n.head = next
	ts := spec.GenesisTimestamp().Unix()
	n.publish(n.buffer.Events(), 0, ts, "genesis")
	n.logger.Info("genesis applied",
		slog.String("root", root.Hex()),
		slog.Uint64("chain_id", n.cfg.ChainID))
	return nil
}

// SubmitTransaction validates and executes tx. On success the receipt
// describes the committed transaction; on failure no state changes.
func (n *Node) SubmitTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	op := "unknown"
	if tx != nil {
		op = tx.Type.String()
	}
	_, span := n.tracer.Start(ctx, "node.submit_transaction", trace.WithAttributes(attribute.String("tx.type", op)))
	defer span.End()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	receipt, err := n.execute(tx)
	class := coreerrors.Classify(err)
	n.metrics.RecordOperation(op, string(class), err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Debug("transaction rejected",
			slog.String("type", op),
			slog.String("class", string(class)),
			slog.String("error", err.Error()))
		return nil, err
	}
	span.SetAttributes(attribute.String("tx.hash", receipt.TxHash), attribute.Int64("slot", int64(receipt.Slot)))
	return receipt, nil
}

type outcome struct {
	contractID *[32]byte
	currencies [][20]byte
}

func (n *Node) execute(tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, coreerrors.ErrNilTransaction
	}
	if tx.ChainID != n.cfg.ChainID {
		return nil, fmt.Errorf("%w: got %d, want %d", coreerrors.ErrInvalidChainID, tx.ChainID, n.cfg.ChainID)
	}
	if !tx.Type.Valid() {
		return nil, fmt.Errorf("%w: 0x%02x", coreerrors.ErrUnknownTxType, uint8(tx.Type))
	}
	sender, err := tx.From()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidSigner, err)
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidPayload, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	nonce, err := n.state.NonceGet(sender)
	if err != nil {
		return nil, err
	}
	if tx.Nonce != nonce {
		return nil, fmt.Errorf("%w: got %d, want %d", coreerrors.ErrInvalidNonce, tx.Nonce, nonce)
	}

	parent := n.trie.Root()
	slot := n.head.Height + 1
	ts := n.now().Unix()
	n.engine.SetClock(func() receivable.Clock { return receivable.Clock{Timestamp: ts, Slot: slot} })
	n.buffer.Reset()
	defer n.buffer.Reset()

	result, err := n.dispatch(sender, tx)
	if err != nil {
		n.rollback(parent)
		return nil, err
	}
	if err := n.state.NonceSet(sender, nonce+1); err != nil {
		n.rollback(parent)
		return nil, err
	}
	root, err := n.trie.Commit(parent, slot)
	if err != nil {
		n.rollback(parent)
		return nil, fmt.Errorf("node: commit: %w", err)
	}
	next := head{Root: root, Height: slot, Genesis: n.head.Genesis}
	if err := n.storeHead(next); err != nil {
		n.rollback(parent)
		return nil, fmt.Errorf("node: persist head: %w", err)
	}
	n.head = next

	txHash := "0x" + hex.EncodeToString(hash)
	emitted := n.buffer.Events()
	receipt := &types.Receipt{
		TxHash:    txHash,
		Type:      tx.Type.String(),
		Sender:    crypto.Address(sender).String(),
		Slot:      slot,
		Timestamp: ts,
		Root:      root.Hex(),
		Events:    make([]types.Event, 0, len(emitted)),
	}
	if result.contractID != nil {
		receipt.ContractID = "0x" + hex.EncodeToString(result.contractID[:])
	}
	for _, evt := range emitted {
		receipt.Events = append(receipt.Events, *evt.Clone())
	}
	n.publish(emitted, slot, ts, txHash)
	n.observeVaults(result.currencies)
	n.metrics.SetHeight(slot)
	n.logger.Info("transaction committed",
		slog.String("hash", txHash),
		slog.String("type", receipt.Type),
		slog.String("sender", receipt.Sender),
		slog.Uint64("slot", slot))
	return receipt, nil
}

func (n *Node) rollback(root common.Hash) {
	if err := n.trie.Reset(root); err != nil {
		n.logger.Error("state rollback failed", slog.String("root", root.Hex()), slog.String("error", err.Error()))
	}
}

func (n *Node) publish(emitted []*types.Event, slot uint64, ts int64, txHash string) {
	if len(emitted) == 0 || len(n.sinks) == 0 {
		return
	}
	records := make([]events.Committed, 0, len(emitted))
	for i, evt := range emitted {
		records = append(records, events.Committed{
			Slot:      slot,
			Timestamp: ts,
			TxHash:    txHash,
			Index:     i,
			Event:     *evt.Clone(),
		})
	}
	for _, sink := range n.sinks {
		if err := sink.HandleCommitted(records); err != nil {
			n.logger.Error("event sink failed",
				slog.String("hash", txHash),
				slog.Uint64("slot", slot),
				slog.String("error", err.Error()))
		}
	}
}

func (n *Node) observeVaults(currencies [][20]byte) {
	for _, currency := range currencies {
		vault, ok, err := n.state.VaultGet(currency)
		if err != nil || !ok {
			continue
		}
		n.metrics.SetOutstanding(n.currencyLabel(currency), vault.Outstanding)
	}
}

func (n *Node) currencyLabel(currency [20]byte) string {
	symbols, err := n.state.Currencies()
	if err == nil {
		for _, symbol := range symbols {
			if mint, ok, _ := n.state.CurrencyGet(symbol); ok && mint == currency {
				return symbol
			}
		}
	}
	return crypto.Address(currency).String()
}
