package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCircuitOpen - circuit breaker открыт, цель недоступна
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyCalls - слишком много одновременных вызовов
	ErrTooManyCalls = errors.New("too many concurrent calls")
)

// ExecuteFunc - функция для выполнения под защитой circuit breaker
type ExecuteFunc func(ctx context.Context) error

// CircuitBreaker защищает целевую базу от шквала обреченных вызовов:
// после серии сбоев записи новые вызовы отклоняются, пока цель
// не восстановится.
type CircuitBreaker struct {
	config       Config
	stateManager *stateManager
}

// New - создать новый Circuit Breaker
func New(config Config) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	return &CircuitBreaker{
		config:       config,
		stateManager: newStateManager(config),
	}, nil
}

// Execute - выполнить функцию с защитой circuit breaker.
// Ошибки, которые IsFailure не признал сбоем цели, возвращаются
// вызывающему, но состояние circuit не меняют.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn ExecuteFunc) error {
	if !cb.config.Enabled {
		return fn(ctx)
	}

	generation, err := cb.stateManager.beforeRequest()
	if err != nil {
		return err
	}

	// Panic учитываем как сбой
	defer func() {
		if r := recover(); r != nil {
			cb.stateManager.afterRequest(generation, false)
			panic(r)
		}
	}()

	err = fn(ctx)

	cb.stateManager.afterRequest(generation, !cb.isFailure(err))

	return err
}

// isFailure - считать ли ошибку сбоем цели
func (cb *CircuitBreaker) isFailure(err error) bool {
	if err == nil {
		return false
	}
	if cb.config.IsFailure != nil {
		return cb.config.IsFailure(err)
	}
	return true
}

// State - получить текущее состояние
func (cb *CircuitBreaker) State() State {
	return cb.stateManager.getState()
}

// Counts - получить счетчики текущего поколения
func (cb *CircuitBreaker) Counts() Counts {
	return cb.stateManager.getCounts()
}

// Stats - получить полную статистику
func (cb *CircuitBreaker) Stats() Stats {
	return cb.stateManager.getStats()
}

// Reset - сбросить состояние в Closed
func (cb *CircuitBreaker) Reset() {
	cb.stateManager.reset()
}

// IsOpen - проверка открыт ли circuit
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.stateManager.getState() == StateOpen
}

// IsClosed - проверка закрыт ли circuit
func (cb *CircuitBreaker) IsClosed() bool {
	return cb.stateManager.getState() == StateClosed
}

// IsHalfOpen - проверка в Half-Open состоянии
func (cb *CircuitBreaker) IsHalfOpen() bool {
	return cb.stateManager.getState() == StateHalfOpen
}

// Name - имя Circuit Breaker
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// WaitUntilReady - блокируется пока circuit не станет проходимым
// (Closed или Half-Open). Потребитель очереди вызывает это вместо
// того чтобы долбить открытый circuit.
func (cb *CircuitBreaker) WaitUntilReady(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		state := cb.State()
		if state == StateClosed || state == StateHalfOpen {
			return nil
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// String - строковое представление
func (cb *CircuitBreaker) String() string {
	stats := cb.Stats()
	return fmt.Sprintf("CircuitBreaker(%s state=%s failures=%d/%d)",
		cb.config.Name,
		stats.State,
		stats.Counts.ConsecutiveFailures,
		cb.config.MaxFailures,
	)
}
