package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"bookstore-cart/internal/config"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producer публикует события корзины и купонов
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера Kafka
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5
	saramaCfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	topics := cfg.Topics
	return &Producer{
		producer: producer,
		log:      log,
		topics:   &topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishCouponApplied публикует событие применения купона к корзине
func (p *Producer) PublishCouponApplied(userID uuid.UUID, coupon *models.CouponSnapshot, discount decimal.Decimal) error {
	data := models.CouponAppliedData{
		UserID:   userID,
		CouponID: coupon.CouponID,
		Code:     coupon.Code,
		Discount: discount,
	}
	return p.publish(p.topics.Carts, models.EventTypeCouponApplied, userID.String(), data)
}

// PublishCartCleared публикует событие очистки корзины
func (p *Producer) PublishCartCleared(userID uuid.UUID, orderID *uuid.UUID) error {
	data := models.CartClearedData{UserID: userID, OrderID: orderID}
	return p.publish(p.topics.Carts, models.EventTypeCartCleared, userID.String(), data)
}

// PublishCartsExpired публикует итог очистки брошенных корзин
func (p *Producer) PublishCartsExpired(removed int64, before time.Time) error {
	data := models.CartsExpiredData{Removed: removed, Before: before}
	return p.publish(p.topics.Carts, models.EventTypeCartsExpired, "", data)
}

// PublishCouponRedeemed публикует факт погашения купона
func (p *Producer) PublishCouponRedeemed(r *models.CouponRedemption) error {
	data := models.CouponRedeemedData{
		RedemptionID: r.ID,
		CouponID:     r.CouponID,
		UserID:       r.UserID,
		OrderID:      r.OrderID,
		Code:         r.Code,
		Discount:     r.DiscountAmount,
	}
	return p.publish(p.topics.Coupons, models.EventTypeCouponRedeemed, r.CouponID.String(), data)
}

func (p *Producer) publish(topic string, eventType models.EventType, key string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      payload,
	}
	return p.publishEventWithKey(topic, key, event)
}

// publishEvent отправляет событие с ключом по идентификатору события
func (p *Producer) publishEvent(topic string, event models.Event) error {
	return p.publishEventWithKey(topic, event.ID.String(), event)
}

func (p *Producer) publishEventWithKey(topic, key string, event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send event %s: %w", event.Type, err)
	}

	p.log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}
