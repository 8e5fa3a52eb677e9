package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config описывает подключение к Redis для публикации результатов
type Config struct {
	Address  string `yaml:"address"`  // host:port
	Password string `yaml:"password"` // пустая строка = без авторизации
	DB       int    `yaml:"db"`
	TTL      int    `yaml:"ttl"` // время жизни state-ключа в секундах, 0 = 24 часа
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl must be >= 0")
	}
	return nil
}

// RunResult представляет итог выполнения загрузки, публикуемый в Redis
// после завершения (успешного или с ошибкой).
//
// Redis-ключи:
//
//	SET  msframe:run:<name>:state  <JSON>  EX <ttl>  — для GET-запросов оркестратора
//	PUB  msframe:run:<name>                          — для event-driven маршрутизации
type RunResult struct {
	Run         string    `json:"run"`
	Status      string    `json:"status"` // "success" | "failed"
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMs  int64     `json:"duration_ms"`
	RowsWritten int       `json:"rows_written"`
	Attempts    int       `json:"attempts"`
	Error       *string   `json:"error,omitempty"`
}

// RunStats — метрики выполнения, собираемые вызывающей стороной
type RunStats struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	RowsWritten int
	Attempts    int
}

// Publisher публикует результат выполнения в Redis
type Publisher struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPublisher создает Redis publisher на основе конфигурации
func NewPublisher(cfg Config) *Publisher {
	ttl := time.Duration(cfg.TTL) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Publisher{client: client, ttl: ttl}
}

// Ping проверяет доступность Redis
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish публикует результат выполнения:
//   - SET msframe:run:<name>:state <JSON> EX <ttl>  → для опроса (polling)
//   - PUBLISH msframe:run:<name> <JSON>             → для подписки (pub/sub)
//
// Вызывается независимо от результата выполнения (success или failed).
// execErr == nil означает успешное выполнение.
func (p *Publisher) Publish(ctx context.Context, run string, stats RunStats, execErr error) error {
	payload, err := json.Marshal(newRunResult(run, stats, execErr))
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	stateKey := fmt.Sprintf("msframe:run:%s:state", run)
	eventChannel := fmt.Sprintf("msframe:run:%s", run)

	// SET ключ с TTL — оркестратор может GET для получения последнего состояния
	if err := p.client.Set(ctx, stateKey, payload, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	// PUBLISH событие — оркестратор может SUBSCRIBE для event-driven маршрутизации
	if err := p.client.Publish(ctx, eventChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}

	return nil
}

// Close закрывает соединение с Redis
func (p *Publisher) Close() error {
	return p.client.Close()
}

func newRunResult(run string, stats RunStats, execErr error) RunResult {
	result := RunResult{
		Run:         run,
		Status:      "success",
		StartedAt:   stats.StartedAt,
		FinishedAt:  stats.FinishedAt,
		DurationMs:  stats.FinishedAt.Sub(stats.StartedAt).Milliseconds(),
		RowsWritten: stats.RowsWritten,
		Attempts:    stats.Attempts,
	}
	if execErr != nil {
		result.Status = "failed"
		errStr := execErr.Error()
		result.Error = &errStr
	}
	return result
}
