package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/errs"
	"cargoledger/internal/ports"
)

const defaultSubjectPrefix = "cargoledger"

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes ingestion events as JSON on
// <prefix>.<kind>.ingested.
type NATSPublisher struct {
	conn   Conn
	prefix string
}

var _ ports.Notifier = (*NATSPublisher)(nil)

func NewNATSPublisher(conn Conn, subjectPrefix string) *NATSPublisher {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(ctx context.Context, url string, subjectPrefix string) (*NATSPublisher, error) {
	logCtx := logging.WithComponent(ctx, "notify.nats")
	nc, err := nats.Connect(
		url,
		nats.Name("cargoledger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.Any("err", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info(logCtx, "nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}
	logging.Info(logCtx, "nats connected", slog.String("url", nc.ConnectedUrl()))
	return NewNATSPublisher(nc, subjectPrefix), nil
}

func (p *NATSPublisher) Subject(kind string) string {
	return p.prefix + "." + strings.ToLower(strings.TrimSpace(kind)) + ".ingested"
}

func (p *NATSPublisher) PublishIngested(ctx context.Context, event ports.IngestedEvent) error {
	if p == nil || p.conn == nil {
		return errors.New("nats connection is required")
	}
	if strings.TrimSpace(event.Kind) == "" {
		return errors.New("event kind is required")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "marshal ingested event")
	}
	subject := p.Subject(event.Kind)
	if err := p.conn.Publish(subject, data); err != nil {
		return errs.Wrapf(err, "publish %s", subject)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errs.Wrapf(err, "flush %s", subject)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
