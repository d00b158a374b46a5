// Package indexer projects committed lifecycle events into a relational table
// so contracts can be listed by creator, recipient, currency or status.
// SQLite and Postgres are supported through gorm.
package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/lulo-labs/lulo-sc/core/events"
	"github.com/lulo-labs/lulo-sc/crypto"
	"github.com/lulo-labs/lulo-sc/native/receivable"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	cursorRowID      = 1
)

var ErrNotFound = errors.New("indexer: contract not found")

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Creator   string
	Recipient string
	PayMint   string
	Status    string
	Limit     int
	Offset    int
}

// Indexer is safe for concurrent use.
type Indexer struct {
	db *gorm.DB
}

// Open connects to dsn. DSNs starting with postgres:// or postgresql:// use
// the Postgres driver; anything else is handed to SQLite. An empty DSN opens a
// private in-memory SQLite database.
func Open(dsn string) (*Indexer, error) {
	dsn = strings.TrimSpace(dsn)
	var dialector gorm.Dialector
	switch {
	case dsn == "":
		dialector = sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return New(db)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB) (*Indexer, error) {
	if err := db.AutoMigrate(&ContractRow{}, &Cursor{}); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db}, nil
}

// Close releases the database connection.
func (i *Indexer) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Next returns the journal sequence the indexer will accept next. Replaying
// the journal from this cursor brings the projection up to date.
func (i *Indexer) Next(ctx context.Context) (uint64, error) {
	var cur Cursor
	err := i.db.WithContext(ctx).First(&cur, cursorRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return cur.Next, nil
}

// HandleCommitted applies committed records. Records below the stored cursor
// are skipped so replays are harmless.
func (i *Indexer) HandleCommitted(records []events.Committed) error {
	if len(records) == 0 {
		return nil
	}
	return i.db.Transaction(func(tx *gorm.DB) error {
		var cur Cursor
		if err := tx.First(&cur, cursorRowID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			cur = Cursor{ID: cursorRowID, Next: 1}
		}
		for _, rec := range records {
			if rec.Sequence != 0 && rec.Sequence < cur.Next {
				continue
			}
			if err := apply(tx, rec); err != nil {
				return err
			}
			if rec.Sequence >= cur.Next {
				cur.Next = rec.Sequence + 1
			}
		}
		return tx.Save(&cur).Error
	})
}

func apply(tx *gorm.DB, rec events.Committed) error {
	attrs := rec.Event.Attributes
	switch rec.Event.Type {
	case receivable.EventTypeCreated:
		row, err := rowFromAttributes(attrs)
		if err != nil {
			return err
		}
		row.CreatedSlot = rec.Slot
		row.UpdatedSlot = rec.Slot
		row.LastSequence = rec.Sequence
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	case receivable.EventTypeApproved, receivable.EventTypePaid, receivable.EventTypeRedeemed:
		row, err := rowFromAttributes(attrs)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{
			"status":        row.Status,
			"approver":      row.Approver,
			"payer":         row.Payer,
			"updated_slot":  rec.Slot,
			"last_sequence": rec.Sequence,
		}
		if rec.Event.Type == receivable.EventTypeRedeemed {
			updates["status"] = StatusRedeemed
			holder, err := bech32Attr(attrs, "holder")
			if err != nil {
				return err
			}
			updates["holder"] = holder
		}
		return tx.Model(&ContractRow{}).Where("id = ?", row.ID).Updates(updates).Error
	default:
		return nil
	}
}

func rowFromAttributes(attrs map[string]string) (*ContractRow, error) {
	id := strings.TrimSpace(attrs["id"])
	if len(id) != 64 {
		return nil, fmt.Errorf("indexer: malformed contract id %q", id)
	}
	row := &ContractRow{ID: "0x" + strings.ToLower(id), Status: attrs["status"]}
	fields := []struct {
		key string
		dst *string
	}{
		{"creator", &row.Creator},
		{"recipient", &row.Recipient},
		{"payMint", &row.PayMint},
		{"mint", &row.Mint},
		{"approver", &row.Approver},
		{"payer", &row.Payer},
	}
	for _, f := range fields {
		value, err := bech32Attr(attrs, f.key)
		if err != nil {
			return nil, err
		}
		*f.dst = value
	}
	amount, err := strconv.ParseUint(attrs["amountDue"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("indexer: amountDue: %w", err)
	}
	due, err := strconv.ParseInt(attrs["dueDate"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("indexer: dueDate: %w", err)
	}
	row.AmountDue = amount
	row.DueDate = due
	return row, nil
}

func bech32Attr(attrs map[string]string, key string) (string, error) {
	raw, ok := attrs[key]
	if !ok || raw == "" {
		return "", nil
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 20 {
		return "", fmt.Errorf("indexer: malformed %s attribute", key)
	}
	var addr crypto.Address
	copy(addr[:], decoded)
	return addr.String(), nil
}

// Get returns the row for a 0x-prefixed contract id.
func (i *Indexer) Get(ctx context.Context, id string) (*ContractRow, error) {
	var row ContractRow
	err := i.db.WithContext(ctx).First(&row, "id = ?", strings.ToLower(strings.TrimSpace(id))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns contracts matching filter ordered by creation slot.
func (i *Indexer) List(ctx context.Context, filter Filter) ([]ContractRow, error) {
	q := i.db.WithContext(ctx).Model(&ContractRow{})
	if filter.Creator != "" {
		q = q.Where("creator = ?", filter.Creator)
	}
	if filter.Recipient != "" {
		q = q.Where("recipient = ?", filter.Recipient)
	}
	if filter.PayMint != "" {
		q = q.Where("pay_mint = ?", filter.PayMint)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", strings.ToLower(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	var rows []ContractRow
	if err := q.Order("created_slot ASC, id ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
