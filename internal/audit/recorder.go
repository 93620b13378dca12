package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/investkaps/investkaps-dev-sub000/internal/bucketing"
	"github.com/investkaps/investkaps-dev-sub000/internal/client"
	"github.com/investkaps/investkaps-dev-sub000/internal/config"
	"github.com/investkaps/investkaps-dev-sub000/internal/models"
	"github.com/investkaps/investkaps-dev-sub000/internal/util"
)

// EventRecorder receives OTP lifecycle events. Implementations must never fail
// the request path: recording is best-effort.
type EventRecorder interface {
	Record(ctx context.Context, event *models.OTPEvent)
}

// Recorder fans each event out to the Kafka stream and the ClickHouse audit
// table. Either sink may be nil (disabled); failures are logged and dropped.
type Recorder struct {
	producer   *client.KafkaProducer
	clickhouse *client.ClickHouseClient
	bucketing  *bucketing.Manager
	topic      string
}

func NewRecorder(cfg *config.Config, producer *client.KafkaProducer, ch *client.ClickHouseClient, bucketManager *bucketing.Manager) *Recorder {
	return &Recorder{
		producer:   producer,
		clickhouse: ch,
		bucketing:  bucketManager,
		topic:      cfg.Kafka.EventsTopic,
	}
}

func (r *Recorder) Record(ctx context.Context, event *models.OTPEvent) {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now().UTC()
	}
	event.EventBucket = r.bucketing.EventBucket(event.PhoneHash)

	// The request context may already be done; give the sinks their own
	// deadline so audit writes still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	r.publish(ctx, event)
	r.insert(ctx, event)
}

func (r *Recorder) publish(ctx context.Context, event *models.OTPEvent) {
	if r.producer == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to marshal OTP event", zap.Error(err))
		return
	}

	err = r.producer.ProduceMessage(ctx, r.topic, []byte(event.PhoneHash), payload, map[string]string{
		"event_type": event.EventType,
	})
	if err != nil {
		util.Warn("Failed to publish OTP event",
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}

func (r *Recorder) insert(ctx context.Context, event *models.OTPEvent) {
	if r.clickhouse == nil {
		return
	}

	err := r.clickhouse.Exec(ctx, `
        INSERT INTO otp_events
            (event_bucket, event_type, phone_hash, user_id, attempts, detail, event_date, event_time)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventBucket, event.EventType, event.PhoneHash, event.UserID,
		event.Attempts, event.Detail, r.bucketing.DateBucket(event.EventTime), event.EventTime)
	if err != nil {
		util.Warn("Failed to insert OTP audit row",
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}
