package services

import (
	"context"
	"sync"
	"time"

	"bookstore-cart/internal/logger"
)

// ExpiredCartDeleter удаляет просроченные корзины.
type ExpiredCartDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CartSweeper периодически удаляет брошенные корзины.
type CartSweeper struct {
	store     ExpiredCartDeleter
	publisher EventPublisher
	log       *logger.Logger
	interval  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCartSweeper создаёт фоновую очистку корзин.
func NewCartSweeper(store ExpiredCartDeleter, publisher EventPublisher, log *logger.Logger, interval time.Duration) *CartSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CartSweeper{
		store:     store,
		publisher: publisherOrNoop(publisher),
		log:       log,
		interval:  interval,
	}
}

// SweepOnce удаляет корзины, срок жизни которых истёк к текущему моменту.
func (s *CartSweeper) SweepOnce(ctx context.Context) (int64, error) {
	before := nowFunc()
	removed, err := s.store.DeleteExpired(ctx, before)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("Expired carts removed")
		if err := s.publisher.PublishCartsExpired(removed, before); err != nil {
			s.log.WithError(err).Warn("Failed to publish carts expired event")
		}
	}
	return removed, nil
}

// Start запускает очистку в отдельной горутине. Повторный вызов ничего не делает.
func (s *CartSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepOnce(ctx); err != nil {
					s.log.WithError(err).Error("Cart sweep failed")
				}
			}
		}
	}(s.done)

	s.log.WithField("interval", s.interval.String()).Info("Cart sweeper started")
}

// Stop останавливает очистку и ждёт завершения горутины.
func (s *CartSweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("Cart sweeper stopped")
}
