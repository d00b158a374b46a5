package indexer

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lulo-labs/lulo-sc/core/events"
	"github.com/lulo-labs/lulo-sc/crypto"
	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/storage/eventlog"
)

func fill(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func contractEvent(evtType string, id byte, status receivable.Status, creator byte) events.Committed {
	c := &receivable.Contract{
		ID:        [32]byte{id},
		Creator:   fill(creator),
		Recipient: fill(0x03),
		Mint:      fill(0x04),
		PayMint:   fill(0x05),
		AmountDue: 1000,
		DueDate:   1_700_086_400,
		Status:    status,
	}
	if status >= receivable.StatusApproved {
		c.Approver = fill(0x03)
	}
	var evt = receivable.NewCreatedEvent(c)
	switch evtType {
	case receivable.EventTypeApproved:
		evt = receivable.NewApprovedEvent(c)
	case receivable.EventTypePaid:
		c.Payer = fill(0x06)
		evt = receivable.NewPaidEvent(c)
	case receivable.EventTypeRedeemed:
		c.Payer = fill(0x06)
		evt = receivable.NewRedeemedEvent(c, fill(0x07), fill(0x08))
	}
	return events.Committed{Event: *evt}
}

func stamp(seq uint64, slot uint64, rec events.Committed) events.Committed {
	rec.Sequence = seq
	rec.Slot = slot
	return rec
}

func TestIndexerTracksLifecycle(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	require.NoError(t, idx.HandleCommitted([]events.Committed{
		stamp(1, 1, contractEvent(receivable.EventTypeCreated, 1, receivable.StatusCreated, 0x02)),
		stamp(2, 2, contractEvent(receivable.EventTypeCreated, 2, receivable.StatusCreated, 0x09)),
	}))
	require.NoError(t, idx.HandleCommitted([]events.Committed{
		stamp(3, 3, contractEvent(receivable.EventTypeApproved, 1, receivable.StatusApproved, 0x02)),
		stamp(4, 4, contractEvent(receivable.EventTypePaid, 1, receivable.StatusPaid, 0x02)),
	}))

	id := "0x" + hex.EncodeToString([]byte{1}) + strings.Repeat("00", 31)
	row, err := idx.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "paid", row.Status)
	require.Equal(t, crypto.Address(fill(0x06)).String(), row.Payer)
	require.Equal(t, crypto.Address(fill(0x03)).String(), row.Approver)
	require.Equal(t, uint64(1), row.CreatedSlot)
	require.Equal(t, uint64(4), row.UpdatedSlot)

	byCreator, err := idx.List(ctx, Filter{Creator: crypto.Address(fill(0x02)).String()})
	require.NoError(t, err)
	require.Len(t, byCreator, 1)

	created, err := idx.List(ctx, Filter{Status: "created"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, crypto.Address(fill(0x09)).String(), created[0].Creator)

	require.NoError(t, idx.HandleCommitted([]events.Committed{
		stamp(5, 5, contractEvent(receivable.EventTypeRedeemed, 1, receivable.StatusPaid, 0x02)),
	}))
	row, err = idx.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusRedeemed, row.Status)
	require.Equal(t, crypto.Address(fill(0x07)).String(), row.Holder)

	next, err := idx.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(6), next)
}

func TestIndexerSkipsReplayedRecords(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	created := stamp(1, 1, contractEvent(receivable.EventTypeCreated, 1, receivable.StatusCreated, 0x02))
	paid := stamp(2, 2, contractEvent(receivable.EventTypePaid, 1, receivable.StatusPaid, 0x02))
	require.NoError(t, idx.HandleCommitted([]events.Committed{created, paid}))
	// Replaying the creation must not reset the status.
	require.NoError(t, idx.HandleCommitted([]events.Committed{created}))

	rows, err := idx.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "paid", rows[0].Status)
}

func TestIndexerRejectsMalformedEvents(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	bad := contractEvent(receivable.EventTypeCreated, 1, receivable.StatusCreated, 0x02)
	bad.Event.Attributes["creator"] = "zz"
	bad.Sequence = 1
	require.Error(t, idx.HandleCommitted([]events.Committed{bad}))

	_, err = idx.Get(context.Background(), "0x00")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFollowCatchesUpAndTails(t *testing.T) {
	journal, err := eventlog.OpenMemory()
	require.NoError(t, err)
	defer journal.Close()
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, journal.HandleCommitted([]events.Committed{
		contractEvent(receivable.EventTypeCreated, 1, receivable.StatusCreated, 0x02),
		contractEvent(receivable.EventTypeCreated, 2, receivable.StatusCreated, 0x02),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- idx.Follow(ctx, journal, nil) }()

	require.Eventually(t, func() bool {
		next, err := idx.Next(ctx)
		return err == nil && next == 3
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, journal.HandleCommitted([]events.Committed{
		contractEvent(receivable.EventTypeCreated, 3, receivable.StatusCreated, 0x09),
	}))
	require.Eventually(t, func() bool {
		rows, err := idx.List(ctx, Filter{})
		return err == nil && len(rows) == 3
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
