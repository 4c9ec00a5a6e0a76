package messaging

import (
	"github.com/antomihe/SustainableCity/store"

	"github.com/sirupsen/logrus"
)

// FillRecorder applies an absolute fill reading to a container.
type FillRecorder interface {
	RecordReading(id string, level int) (*store.Container, error)
}

type Subscriber interface {
	Subscribe(topic string, handler MessageHandler) error
}

// SensorConsumer subscribes to the sensor topic and feeds fill readings into
// the container lifecycle.
type SensorConsumer struct {
	client   Subscriber
	topic    string
	recorder FillRecorder
}

func NewSensorConsumer(client Subscriber, topic string, recorder FillRecorder) *SensorConsumer {
	return &SensorConsumer{
		client:   client,
		topic:    topic,
		recorder: recorder,
	}
}

func (c *SensorConsumer) Start() error {
	return c.client.Subscribe(c.topic, c.handleMessage)
}

func (c *SensorConsumer) handleMessage(_ string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		log.Warnf("sensors: decode error: %v", err)
		return
	}

	reading, ok := env.Payload.(FillReading)
	if !ok {
		log.Debugf("sensors: ignoring %s from %s", env.Type, env.Source)
		return
	}
	fields := logrus.Fields{"container": reading.ContainerID, "source": env.Source}
	if _, err := c.recorder.RecordReading(reading.ContainerID, reading.FillLevel); err != nil {
		log.WithFields(fields).Warnf("sensors: reading %d rejected: %v", reading.FillLevel, err)
		return
	}
	log.WithFields(fields).Debugf("sensors: fill level %d", reading.FillLevel)
}
