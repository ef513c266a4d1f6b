package adapter

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/pkg/mq"
	"phincommerce/internal/service/orchestrator/domain"
)

// OutcomeKafkaPublisher 把 Saga 结果 {status, payload} 发送到订单 topic，按订单号分区
type OutcomeKafkaPublisher struct {
	writer mq.Writer
}

func NewOutcomeKafkaPublisher(writer mq.Writer) *OutcomeKafkaPublisher {
	return &OutcomeKafkaPublisher{writer: writer}
}

func (p *OutcomeKafkaPublisher) Publish(ctx context.Context, sagaID string, event *domain.SagaEvent) error {
	eventBytes, err := event.Encode()
	if err != nil {
		return errors.Wrap(err, "encode outcome event")
	}

	orderID := strconv.FormatInt(event.Snapshot.ID, 10)
	headers := []kafka.Header{
		{Key: mq.HeaderSagaID, Value: []byte(sagaID)},
		{Key: mq.HeaderOrderID, Value: []byte(orderID)},
		{Key: mq.HeaderEventStatus, Value: []byte(event.Status.String())},
	}
	if err := mq.ProduceMessage(ctx, p.writer, []byte(orderID), eventBytes, headers...); err != nil {
		return errors.Wrapf(err, "publish %s for order %s", event.Status, orderID)
	}
	logger.Ctx(ctx).Info().Str("status", event.Status.String()).Str("order", orderID).Msg("Outcome event published")
	return nil
}

// AlertKafkaPublisher 把补偿失败的告警发送到告警 topic
type AlertKafkaPublisher struct {
	writer mq.Writer
	now    func() time.Time
}

func NewAlertKafkaPublisher(writer mq.Writer) *AlertKafkaPublisher {
	return &AlertKafkaPublisher{writer: writer, now: time.Now}
}

func (p *AlertKafkaPublisher) PublishCompensationFailure(ctx context.Context, alert domain.CompensationAlert) error {
	msg := domain.NewAlertMessage(alert, p.now())
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal compensation alert")
	}

	orderID := strconv.FormatInt(alert.OrderID, 10)
	headers := []kafka.Header{
		{Key: mq.HeaderSagaID, Value: []byte(alert.SagaID)},
		{Key: mq.HeaderOrderID, Value: []byte(orderID)},
		{Key: mq.HeaderAlertType, Value: []byte(msg.Type)},
	}
	return mq.ProduceMessage(ctx, p.writer, []byte(orderID), payload, headers...)
}
