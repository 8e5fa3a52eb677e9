package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// RetryableFunc - функция которую можно повторять
type RetryableFunc func(ctx context.Context) error

// Retryer выполняет повторы с backoff и складывает
// безнадежные батчи в DLQ
type Retryer struct {
	config Config
	dlq    *DLQ
}

// NewRetryer создает новый Retryer
func NewRetryer(config Config) (*Retryer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	var dlq *DLQ
	if config.DLQ.Enabled {
		var err error
		dlq, err = NewDLQ(config.DLQ)
		if err != nil {
			return nil, fmt.Errorf("failed to create DLQ: %w", err)
		}
	}

	return &Retryer{
		config: config,
		dlq:    dlq,
	}, nil
}

// Do выполняет функцию с повторами
func (r *Retryer) Do(ctx context.Context, fn RetryableFunc) error {
	return r.doInternal(ctx, fn, nil)
}

// DoBatch выполняет запись батча с повторами. Если попытки исчерпаны,
// ошибка не подлежит повтору или контекст отменен, батч сохраняется в
// DLQ (когда DLQ включен) и позже может быть перезапущен через
// DLQEntry.Requeue.
func (r *Retryer) DoBatch(ctx context.Context, fn RetryableFunc, batch *frame.Batch) error {
	return r.doInternal(ctx, fn, batch)
}

// doInternal выполняет функцию с повторами (внутренняя реализация)
func (r *Retryer) doInternal(ctx context.Context, fn RetryableFunc, batch *frame.Batch) error {
	if !r.config.Enabled {
		// Retry отключен, просто выполняем функцию
		return fn(ctx)
	}

	var lastErr error
	attempts := 0

	for {
		attempts++

		// Выполняем функцию
		err := fn(ctx)
		if err == nil {
			// Успех!
			return nil
		}

		lastErr = err

		// Проверяем нужен ли повтор для этой ошибки. Батч с ошибкой,
		// которую повторы не исправят, сразу уходит в DLQ.
		if !r.isRetryableError(err) {
			r.deadLetter("non_retryable", attempts, lastErr, batch)
			return fmt.Errorf("non-retryable error: %w", err)
		}

		// Проверяем достигли ли максимального количества попыток
		if r.config.MaxAttempts > 0 && attempts >= r.config.MaxAttempts {
			r.deadLetter("max_attempts_exceeded", attempts, lastErr, batch)
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
		}

		// Проверяем context
		if ctx.Err() != nil {
			r.deadLetter("context_cancelled", attempts, lastErr, batch)
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		// Вычисляем задержку
		delay := r.calculateDelay(attempts)

		// Callback перед повтором
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempts, err, delay)
		}

		// Ждем перед следующей попыткой
		select {
		case <-time.After(delay):
			// Продолжаем
		case <-ctx.Done():
			r.deadLetter("context_cancelled", attempts, lastErr, batch)
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// deadLetter сохраняет батч в DLQ. Вызовы Do (без батча) в DLQ не попадают.
func (r *Retryer) deadLetter(failureType string, attempts int, err error, batch *frame.Batch) {
	if r.dlq == nil || batch == nil {
		return
	}

	r.dlq.Add(DLQEntry{
		Timestamp:   time.Now(),
		Attempts:    attempts,
		LastError:   err.Error(),
		FailureType: failureType,
		Batch:       batch,
	})
}

// calculateDelay вычисляет задержку для текущей попытки
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.BackoffStrategy {
	case BackoffConstant:
		delay = r.config.InitialDelay

	case BackoffLinear:
		// Linear: delay = initial * attempt
		delay = r.config.InitialDelay * time.Duration(attempt)

	case BackoffExponential:
		// Exponential: delay = initial * multiplier^(attempt-1)
		multiplier := math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)

	default:
		delay = r.config.InitialDelay
	}

	// Применяем max delay
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	// Добавляем jitter (случайность)
	if r.config.Jitter > 0 {
		jitter := time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
		delay += jitter
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}

	return delay
}

// isRetryableError проверяет нужен ли повтор для ошибки
func (r *Retryer) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Если список retryable errors пуст, повторяем все ошибки
	if len(r.config.RetryableErrors) == 0 {
		return true
	}

	// Проверяем содержит ли ошибка один из retryable patterns
	errStr := err.Error()
	for _, pattern := range r.config.RetryableErrors {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// GetDLQ возвращает DLQ если он включен
func (r *Retryer) GetDLQ() *DLQ {
	return r.dlq
}

// Close закрывает Retryer и сохраняет DLQ
func (r *Retryer) Close() error {
	if r.dlq != nil {
		return r.dlq.Save()
	}
	return nil
}
