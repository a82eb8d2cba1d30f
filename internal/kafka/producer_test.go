package kafka

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"bookstore-cart/internal/config"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestPublishEvent(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageAndSucceed()

	event := models.Event{ID: uuid.New(), Type: models.EventTypeCouponRedeemed}
	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Coupons: "coupons"},
	}
	if err := p.publishEvent("coupons", event); err != nil {
		t.Fatalf("expected publish success, got %v", err)
	}

	if err := mp.Close(); err != nil {
		t.Fatalf("failed to close mock producer: %v", err)
	}
}

func TestProducer_WrapperMethods(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	for i := 0; i < 4; i++ {
		mp.ExpectSendMessageAndSucceed()
	}

	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Carts: "carts", Coupons: "coupons", Payments: "payments"},
	}

	userID := uuid.New()
	orderID := uuid.New()
	snapshot := &models.CouponSnapshot{CouponID: uuid.New(), Code: "BOOK10", DiscountType: models.DiscountTypeFixed, Value: decimal.NewFromInt(10)}

	if err := p.PublishCouponApplied(userID, snapshot, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("PublishCouponApplied failed: %v", err)
	}
	if err := p.PublishCartCleared(userID, &orderID); err != nil {
		t.Fatalf("PublishCartCleared failed: %v", err)
	}
	if err := p.PublishCartsExpired(3, time.Now()); err != nil {
		t.Fatalf("PublishCartsExpired failed: %v", err)
	}
	redemption := &models.CouponRedemption{ID: uuid.New(), CouponID: snapshot.CouponID, UserID: userID, OrderID: orderID, Code: "BOOK10"}
	if err := p.PublishCouponRedeemed(redemption); err != nil {
		t.Fatalf("PublishCouponRedeemed failed: %v", err)
	}
}

func TestProducer_MessageShape(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)

	userID := uuid.New()
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "carts" {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != userID.String() {
			return fmt.Errorf("expected user key, got %s", key)
		}
		value, _ := msg.Value.Encode()
		var ev models.Event
		if err := json.Unmarshal(value, &ev); err != nil {
			return err
		}
		if ev.Type != models.EventTypeCartCleared {
			return fmt.Errorf("unexpected event type %s", ev.Type)
		}
		return nil
	})

	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Carts: "carts"},
	}
	if err := p.PublishCartCleared(userID, nil); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := mp.Close(); err != nil {
		t.Fatalf("failed to close mock producer: %v", err)
	}
}

func TestProducer_PublishEvent_Failure(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Coupons: "coupons"},
	}

	ev := models.Event{ID: uuid.New(), Type: models.EventTypeCouponRedeemed}
	err := p.publishEvent("coupons", ev)
	if err == nil {
		t.Fatalf("expected error on send failure")
	}
	_ = p.Close()
}

func TestNewProducer_Error(t *testing.T) {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.KafkaConfig{Brokers: []string{"localhost:0"}}
	if _, err := NewProducer(cfg, log); err == nil {
		t.Fatalf("expected error creating producer")
	}
}

func TestProducer_CloseNil(t *testing.T) {
	var p *Producer
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error on nil producer")
	}
	p = &Producer{}
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error on empty producer, got %v", err)
	}
}
