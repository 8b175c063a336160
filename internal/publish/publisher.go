package publish

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"tracecap/internal/models"
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Publisher forwards decoded frames to a NATS subject. It implements
// engine.Client.
type Publisher struct {
	nc      Conn
	subject string
	log     *zap.SugaredLogger
}

// Connect dials the NATS server at url.
func Connect(url, subject string, log *zap.SugaredLogger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("tracecap"))
	if err != nil {
		return nil, err
	}
	log.Infow("connected to NATS", "url", url, "subject", subject)
	return New(nc, subject, log), nil
}

// New wraps an established connection.
func New(nc Conn, subject string, log *zap.SugaredLogger) *Publisher {
	return &Publisher{nc: nc, subject: subject, log: log}
}

// Subject returns the subject messages of the given type are published to.
// Frames go to the base subject, everything else to a sub-subject named
// after the message type.
func (p *Publisher) Subject(msgType string) string {
	if msgType == models.MessageFrame {
		return p.subject
	}
	return p.subject + "." + msgType
}

// SendMessage publishes the message payload.
func (p *Publisher) SendMessage(msg models.WSMessage) error {
	data := []byte(msg.Payload)
	if data == nil {
		data = []byte{}
	}
	if err := p.nc.Publish(p.Subject(msg.Type), data); err != nil {
		p.log.Warnw("failed to publish", "type", msg.Type, "error", err)
		return err
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.log.Warnw("NATS drain failed", "error", err)
			return
		}
		p.log.Infow("NATS connection drained and closed")
	}
}
