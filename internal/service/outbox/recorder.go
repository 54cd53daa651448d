package outbox

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Recorder связывает сервисы с transactional outbox и timeline-аудитом.
// Ошибки записи логируются, но не прерывают основную операцию: событие
// вторично по отношению к уже применённому изменению заказа.
type Recorder struct {
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
}

// NewRecorder создаёт recorder; любой из репозиториев может быть nil.
func NewRecorder(outboxRepo domain.OutboxRepository, timeline domain.TimelineRepository, logger *log.Entry) *Recorder {
	if logger == nil {
		logger = log.WithField("component", "event-recorder")
	}
	return &Recorder{outbox: outboxRepo, timeline: timeline, logger: logger}
}

// Emit кладёт событие заказа в outbox и дублирует его в timeline.
func (r *Recorder) Emit(orderID, eventType, reason string, payload map[string]any) {
	if r == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["order_id"] = orderID

	occurred := time.Now().UTC()
	payload["ts"] = occurred.Format(time.RFC3339Nano)

	if r.outbox != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			r.logger.WithError(err).WithFields(log.Fields{
				"order_id": orderID,
				"event":    eventType,
			}).Error("marshal event failed")
		} else {
			msg := domain.OutboxMessage{
				AggregateType: "order",
				AggregateID:   orderID,
				EventType:     eventType,
				Payload:       data,
			}
			if _, err := r.outbox.Enqueue(msg); err != nil {
				r.logger.WithError(err).WithFields(log.Fields{
					"order_id": orderID,
					"event":    eventType,
				}).Error("enqueue event failed")
			}
		}
	}

	if r.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  orderID,
			Type:     eventType,
			Reason:   reason,
			Occurred: occurred,
		}
		if err := r.timeline.Append(event); err != nil {
			r.logger.WithError(err).WithFields(log.Fields{
				"order_id": orderID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		}
	}
}
