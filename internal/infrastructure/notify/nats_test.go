package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cargoledger/internal/ports"
)

type fakeConn struct {
	subject string
	data    []byte
	flushed bool
	pubErr  error
	drained bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.pubErr != nil {
		return c.pubErr
	}
	c.subject = subject
	c.data = data
	return nil
}

func (c *fakeConn) FlushWithContext(context.Context) error {
	c.flushed = true
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestPublishIngested(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, " ledger. ")

	event := ports.IngestedEvent{
		UploadID:   "u1",
		Kind:       "Ocean",
		RowCount:   3,
		UploadDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		ItemsAdded: 2,
	}
	if err := p.PublishIngested(context.Background(), event); err != nil {
		t.Fatalf("PublishIngested() error = %v", err)
	}
	if conn.subject != "ledger.ocean.ingested" || !conn.flushed {
		t.Fatalf("subject = %q flushed = %v", conn.subject, conn.flushed)
	}

	var got ports.IngestedEvent
	if err := json.Unmarshal(conn.data, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.UploadID != "u1" || got.ItemsAdded != 2 {
		t.Fatalf("payload = %+v", got)
	}

	if err := p.Close(); err != nil || !conn.drained {
		t.Fatalf("Close() error = %v drained = %v", err, conn.drained)
	}
}

func TestPublishIngestedErrors(t *testing.T) {
	boom := errors.New("nats: connection closed")
	p := NewNATSPublisher(&fakeConn{pubErr: boom}, "")
	if p.Subject("air") != "cargoledger.air.ingested" {
		t.Fatalf("Subject() = %q", p.Subject("air"))
	}
	if err := p.PublishIngested(context.Background(), ports.IngestedEvent{Kind: "air"}); !errors.Is(err, boom) {
		t.Fatalf("PublishIngested() error = %v, want %v", err, boom)
	}
	if err := p.PublishIngested(context.Background(), ports.IngestedEvent{}); err == nil {
		t.Fatalf("PublishIngested() without kind expected error")
	}
}
