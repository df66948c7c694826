package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"scenebreak/internal/interfaces"
	"scenebreak/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const appID = "scenebreak"

var _ interfaces.SceneEventPublisher = (*rabbitMQPublisher)(nil)

// rabbitMQPublisher публикует события о сценах в durable очередь RabbitMQ.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQPublisher объявляет очередь событий и возвращает издателя.
// Канал открывается и закрывается вызывающим кодом.
func NewRabbitMQPublisher(ch *amqp.Channel, queueName string, logger *zap.Logger) (interfaces.SceneEventPublisher, error) {
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare scene events queue '%s': %w", queueName, err)
	}
	logger.Info("Scene events queue declared", zap.String("queue", queueName))

	return &rabbitMQPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("SceneEventPublisher"),
	}, nil
}

func (p *rabbitMQPublisher) PublishSceneEvent(ctx context.Context, event models.SceneEvent) error {
	log := p.logger.With(
		zap.String("eventID", event.EventID),
		zap.String("type", string(event.Type)),
		zap.String("sceneID", event.SceneID.String()),
	)

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode scene event %s: %w", event.EventID, err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        appID,
			MessageId:    event.EventID,
			Type:         string(event.Type),
		},
	)
	if err != nil {
		log.Error("Failed to publish scene event", zap.Error(err))
		return fmt.Errorf("failed to publish scene event %s: %w", event.EventID, err)
	}

	log.Debug("Scene event published", zap.String("queue", p.queueName))
	return nil
}

// noopPublisher используется, когда RabbitMQ не настроен.
type noopPublisher struct{}

// NewNoopPublisher возвращает издателя, который отбрасывает события.
func NewNoopPublisher() interfaces.SceneEventPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishSceneEvent(context.Context, models.SceneEvent) error {
	return nil
}
