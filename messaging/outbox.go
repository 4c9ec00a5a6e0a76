package messaging

import (
	"time"

	"github.com/antomihe/SustainableCity/metrics"
	"github.com/antomihe/SustainableCity/store"
)

const (
	outboxBatchSize  = 50
	outboxMaxRetries = 10
)

// Publisher is the sending half of Client.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       *store.DB
	client   Publisher
	interval time.Duration
	stopChan chan struct{}
}

func NewOutboxDrainer(db *store.DB, client Publisher, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{
		db:       db,
		client:   client,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	go d.run()
}

func (d *OutboxDrainer) Stop() {
	select {
	case d.stopChan <- struct{}{}:
	default:
	}
}

func (d *OutboxDrainer) run() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

// drain publishes one batch and returns how many messages were acked.
func (d *OutboxDrainer) drain() int {
	msgs, err := d.db.ListPendingOutbox(outboxBatchSize, outboxMaxRetries)
	if err != nil {
		log.Errorf("outbox: list pending: %v", err)
		return 0
	}
	sent := 0
	for _, msg := range msgs {
		if err := d.client.Publish(msg.Topic, msg.Payload); err != nil {
			log.Warnf("outbox: publish %s to %s failed (retry %d): %v", msg.MsgType, msg.Topic, msg.Retries+1, err)
			metrics.OutboxPublishFailures.Inc()
			if err := d.db.IncrementOutboxRetries(msg.ID); err != nil {
				log.Errorf("outbox: increment retries %d: %v", msg.ID, err)
			}
			continue
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			log.Errorf("outbox: ack %d: %v", msg.ID, err)
			continue
		}
		sent++
	}
	return sent
}
