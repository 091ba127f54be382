package notify

import (
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/kafka"
)

// Emitter publishes reminder events for the Notification collaborator.
// Fire-and-forget: delivery is the consumer's responsibility.
type Emitter interface {
	EmitReminder(event model.ReminderEvent) error
}

type emitter struct {
	producer sarama.SyncProducer
	log      *zap.Logger
}

func NewEmitter(producer sarama.SyncProducer, log *zap.Logger) Emitter {
	return &emitter{
		producer: producer,
		log:      log.Named("notify"),
	}
}

func (e *emitter) EmitReminder(event model.ReminderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: kafka.RemindersTopic,
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.StringEncoder(data),
	}
	if _, _, err := e.producer.SendMessage(msg); err != nil {
		return err
	}
	e.log.Debug("reminder emitted",
		zap.Int64("reservation_id", event.ReservationID),
		zap.Int("lead_minutes", event.LeadMinutes))
	return nil
}
