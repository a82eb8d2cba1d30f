package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bookstore-cart/internal/config"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"

	"github.com/IBM/sarama"
)

// EventHandler обрабатывает событие из шины
type EventHandler func(ctx context.Context, event *models.Event) error

const (
	defaultHandlerAttempts = 5
	defaultRetryBackoff    = 500 * time.Millisecond
)

// errMalformedEvent помечает сообщение, которое не разобрать: повтор ничего не изменит.
var errMalformedEvent = errors.New("malformed event")

// Consumer читает события в составе consumer group
type Consumer struct {
	consumer sarama.ConsumerGroup
	log      *logger.Logger
	handlers map[models.EventType]EventHandler
	topics   []string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	attempts int
	backoff  time.Duration
}

// NewConsumer создает консьюмера топика платежей
func NewConsumer(cfg *config.KafkaConfig, log *logger.Logger) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics:   []string{cfg.Topics.Payments},
		ctx:      ctx,
		cancel:   cancel,
		attempts: defaultHandlerAttempts,
		backoff:  defaultRetryBackoff,
	}, nil
}

// NewTestConsumer создает консьюмера поверх произвольной consumer group
func NewTestConsumer(group sarama.ConsumerGroup, log *logger.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics:   []string{"payments"},
		ctx:      ctx,
		cancel:   cancel,
		attempts: defaultHandlerAttempts,
		backoff:  time.Millisecond,
	}
}

// SetRetry задаёт число попыток обработчика и начальную паузу между ними
func (c *Consumer) SetRetry(attempts int, backoff time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	c.attempts = attempts
	c.backoff = backoff
}

// RegisterHandler регистрирует обработчик для типа события
func (c *Consumer) RegisterHandler(eventType models.EventType, handler EventHandler) {
	c.handlers[eventType] = handler
}

// Handler возвращает обработчик для типа события
func (c *Consumer) Handler(eventType models.EventType) EventHandler {
	return c.handlers[eventType]
}

// HandlerCount возвращает число зарегистрированных обработчиков
func (c *Consumer) HandlerCount() int {
	return len(c.handlers)
}

// Start запускает чтение в фоне
func (c *Consumer) Start() error {
	if c.consumer == nil {
		return errors.New("consumer group is not initialized")
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumer.Consume(c.ctx, c.topics, c); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.log.WithError(err).Error("Kafka consume failed")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			c.log.WithError(err).Error("Kafka consumer group error")
		}
	}()

	c.log.WithField("topics", c.topics).Info("Kafka consumer started")
	return nil
}

// Stop останавливает чтение и закрывает consumer group
func (c *Consumer) Stop() error {
	if c == nil {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}

	var err error
	if c.consumer != nil {
		err = c.consumer.Close()
	}
	c.wg.Wait()
	return err
}

// Setup вызывается в начале новой сессии
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup вызывается по завершении сессии
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения партиции.
// Сообщение отмечается только после успешной обработки. Если обработчик так и не
// справился, сессия завершается с ошибкой и сообщение будет прочитано повторно.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			fields := map[string]interface{}{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}
			err := c.processWithRetry(session.Context(), msg)
			switch {
			case err == nil:
			case errors.Is(err, errMalformedEvent):
				c.log.WithError(err).WithFields(fields).Error("Skipping malformed message")
			case session.Context().Err() != nil:
				return nil
			default:
				c.log.WithError(err).WithFields(fields).Error("Failed to process message, leaving it for redelivery")
				return err
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// processWithRetry повторяет обработчик с растущей паузой
func (c *Consumer) processWithRetry(ctx context.Context, msg *sarama.ConsumerMessage) error {
	attempts := c.attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := c.backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = c.processMessage(msg)
		if err == nil || errors.Is(err, errMalformedEvent) {
			return err
		}
		if attempt == attempts {
			break
		}
		c.log.WithError(err).WithField("attempt", attempt).Warn("Event handler failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) error {
	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.log.WithField("event_type", event.Type).Debug("No handler registered for event")
		return nil
	}

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := handler(ctx, &event); err != nil {
		return fmt.Errorf("handler for %s failed: %w", event.Type, err)
	}

	c.log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	}).Debug("Event processed")
	return nil
}
