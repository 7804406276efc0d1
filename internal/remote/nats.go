package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/drgolem/tomu/pkg/playback"
)

const DefaultNatsSubject = "tomu.control"

// Nats receives command bytes published on a NATS subject. The connection
// lives across sessions; each session subscribes for its own Control.
type Nats struct {
	conn    *nats.Conn
	subject string
	log     *slog.Logger
}

// DialNats connects to the NATS server at url.
func DialNats(url, subject string, log *slog.Logger) (*Nats, error) {
	opts := nats.GetDefaultOptions()
	opts.Servers = []string{url}
	opts.Name = "tomu:control"
	opts.Timeout = 2 * time.Second
	opts.DisconnectedErrCB = func(_ *nats.Conn, err error) {
		if err != nil {
			log.Warn("NATS disconnected", "error", err)
		}
	}
	opts.ReconnectedCB = func(nc *nats.Conn) {
		log.Info("NATS reconnected", "url", nc.ConnectedUrl())
	}

	nc, err := opts.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	if subject == "" {
		subject = DefaultNatsSubject
	}
	return &Nats{conn: nc, subject: subject, log: log}, nil
}

// Run subscribes until ctx is cancelled.
func (n *Nats) Run(ctx context.Context, ctrl *playback.Control) error {
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		dispatchAll(n.log, msg.Data, ctrl)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", n.subject, err)
	}
	n.log.Debug("NATS control subscribed", "subject", n.subject)

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && n.conn.IsConnected() {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// Publish sends one command byte to the subject.
func (n *Nats) Publish(cmd byte) error {
	if err := n.conn.Publish(n.subject, []byte{cmd}); err != nil {
		return err
	}
	return n.conn.Flush()
}

func (n *Nats) Close() {
	n.conn.Close()
}
