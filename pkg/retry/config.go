package retry

import (
	"fmt"
	"time"
)

// BackoffStrategy определяет стратегию задержки между повторами
type BackoffStrategy string

const (
	// BackoffConstant - постоянная задержка
	BackoffConstant BackoffStrategy = "constant"
	// BackoffLinear - линейное увеличение задержки
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential - экспоненциальное увеличение задержки
	BackoffExponential BackoffStrategy = "exponential"
)

// Config содержит конфигурацию retry-механизма вокруг записи батчей
type Config struct {
	// Enabled - включить retry механизм
	Enabled bool

	// MaxAttempts - максимальное количество попыток (включая первую)
	// 0 = бесконечные попытки (не рекомендуется)
	MaxAttempts int

	// InitialDelay - начальная задержка перед первым повтором
	InitialDelay time.Duration

	// MaxDelay - максимальная задержка между попытками
	MaxDelay time.Duration

	// BackoffStrategy - стратегия увеличения задержки
	BackoffStrategy BackoffStrategy

	// BackoffMultiplier - множитель для exponential backoff (обычно 2.0)
	BackoffMultiplier float64

	// Jitter - добавлять случайность к задержке (0.0 - 1.0)
	// Помогает избежать "thundering herd" проблемы
	Jitter float64

	// RetryableErrors - подстроки ошибок, для которых выполняется повтор.
	// Пустой список = повтор для всех ошибок.
	// По умолчанию - временные сбои SQL Server и сети (TransientErrors)
	RetryableErrors []string

	// OnRetry - callback функция, вызываемая перед каждым повтором
	OnRetry func(attempt int, err error, delay time.Duration)

	// DLQ - конфигурация Dead Letter Queue для батчей,
	// которые так и не удалось записать
	DLQ DLQConfig
}

// DLQConfig содержит конфигурацию Dead Letter Queue
type DLQConfig struct {
	// Enabled - включить DLQ
	Enabled bool

	// FilePath - путь к JSON-файлу очереди
	FilePath string

	// MaxSize - максимальный размер DLQ (в записях)
	// При превышении старые записи удаляются
	MaxSize int

	// RetentionPeriod - как долго хранить записи в DLQ
	RetentionPeriod time.Duration
}

// TransientErrors возвращает подстроки ошибок, характерные для временных
// сбоев SQL Server и сетевого слоя. Нарушения ограничений и ошибки
// конвертации типов под эти шаблоны не попадают.
func TransientErrors() []string {
	return []string{
		"deadlock",
		"timeout expired",
		"i/o timeout",
		"connection reset",
		"connection refused",
		"broken pipe",
		"driver: bad connection",
		"transport-level error",
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil // Если не включено, валидация не нужна
	}

	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}

	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0")
	}

	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}

	if c.BackoffStrategy != BackoffConstant &&
		c.BackoffStrategy != BackoffLinear &&
		c.BackoffStrategy != BackoffExponential {
		return fmt.Errorf("invalid backoff strategy: %s", c.BackoffStrategy)
	}

	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0 // Default
	}

	if c.Jitter < 0 || c.Jitter > 1.0 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", c.Jitter)
	}

	return nil
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		MaxAttempts:       3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffStrategy:   BackoffExponential,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryableErrors:   TransientErrors(),
		OnRetry:           nil,
		DLQ: DLQConfig{
			Enabled:         false,
			FilePath:        "./dlq.json",
			MaxSize:         10000,
			RetentionPeriod: 7 * 24 * time.Hour, // 7 days
		},
	}
}

// EnableRetry создает конфигурацию с включенным retry
func EnableRetry(maxAttempts int, initialDelay time.Duration) Config {
	config := DefaultConfig()
	config.Enabled = true
	config.MaxAttempts = maxAttempts
	config.InitialDelay = initialDelay
	return config
}

// EnableRetryWithDLQ создает конфигурацию с retry и DLQ
func EnableRetryWithDLQ(maxAttempts int, initialDelay time.Duration, dlqPath string) Config {
	config := EnableRetry(maxAttempts, initialDelay)
	config.DLQ.Enabled = true
	config.DLQ.FilePath = dlqPath
	return config
}
