package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
)

const (
	statusOK          = "ok"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"
	statusDisabled    = "disabled"
)

// HealthHandler отдаёт состояние хранилища корзин, схемы журнала, кеша купонов и шины событий.
// Кеш купонов необязателен: без него сервис работает, поэтому его отказ понижает статус до degraded.
type HealthHandler struct {
	store    StoreHealth
	cache    CacheHealth
	busCheck func() error
}

// NewHealthHandler создаёт обработчик. cache может быть nil, если Redis не подключён.
func NewHealthHandler(store StoreHealth, cache CacheHealth, busCheck func() error) *HealthHandler {
	if busCheck == nil {
		busCheck = func() error { return fmt.Errorf("event bus check is not configured") }
	}
	return &HealthHandler{store: store, cache: cache, busCheck: busCheck}
}

// ComponentHealth состояние одной зависимости
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthReport ответ /health
type HealthReport struct {
	Status        string                     `json:"status"`
	Components    map[string]ComponentHealth `json:"components"`
	SchemaVersion uint                       `json:"schema_version"`
	Uptime        string                     `json:"uptime"`
}

var startTime = time.Now()

// Health собирает полный отчёт. 503 только при отказе обязательных зависимостей.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := HealthReport{
		Status:     statusOK,
		Components: make(map[string]ComponentHealth, 4),
		Uptime:     time.Since(startTime).String(),
	}
	fail := func(name string, err error, status string) {
		report.Components[name] = ComponentHealth{Status: status, Error: err.Error()}
		if status == statusUnavailable || report.Status == statusOK {
			report.Status = status
		}
	}

	if err := h.store.Health(); err != nil {
		fail("postgres", err, statusUnavailable)
		report.Components["schema"] = ComponentHealth{Status: statusUnavailable, Error: "database unreachable"}
	} else {
		report.Components["postgres"] = ComponentHealth{Status: statusOK}
		version, err := h.schemaReady(ctx)
		report.SchemaVersion = version
		if err != nil {
			fail("schema", err, statusUnavailable)
		} else {
			report.Components["schema"] = ComponentHealth{Status: statusOK}
		}
	}

	if h.cache == nil {
		report.Components["coupon_cache"] = ComponentHealth{Status: statusDisabled}
	} else if err := h.cache.Health(ctx); err != nil {
		fail("coupon_cache", err, statusDegraded)
	} else {
		report.Components["coupon_cache"] = ComponentHealth{Status: statusOK}
	}

	if err := h.busCheck(); err != nil {
		fail("kafka", err, statusUnavailable)
	} else {
		report.Components["kafka"] = ComponentHealth{Status: statusOK}
	}

	code := http.StatusOK
	if report.Status == statusUnavailable {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, report)
}

// Readiness: трафик принимается, когда доступна БД, схема журнала применена и шина отвечает.
// Кеш купонов на готовность не влияет.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Health(); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Database not ready")
		return
	}
	version, err := h.schemaReady(ctx)
	if err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Schema not ready: "+err.Error())
		return
	}
	if err := h.busCheck(); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Kafka not ready")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":         "ready",
		"schema_version": version,
	})
}

// Liveness не трогает зависимости
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startTime).String(),
	})
}

func (h *HealthHandler) schemaReady(ctx context.Context) (uint, error) {
	state, err := h.store.Schema(ctx)
	if err != nil {
		return 0, err
	}
	return state.Version, state.Ready()
}

// PaymentsTopicCheck возвращает проверку шины: брокеры отвечают и топик оплат существует.
func PaymentsTopicCheck(brokers []string, topic string) func() error {
	return func() error {
		if len(brokers) == 0 {
			return fmt.Errorf("no brokers configured")
		}

		cfg := sarama.NewConfig()
		cfg.Net.DialTimeout = 3 * time.Second
		cfg.Net.ReadTimeout = 5 * time.Second
		cfg.Metadata.Retry.Max = 1
		cfg.Metadata.Retry.Backoff = 500 * time.Millisecond

		client, err := sarama.NewClient(brokers, cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		topics, err := client.Topics()
		if err != nil {
			return fmt.Errorf("failed to list topics: %w", err)
		}
		for _, t := range topics {
			if t == topic {
				return nil
			}
		}
		return fmt.Errorf("topic %q not found", topic)
	}
}
