package resilience

import (
	"fmt"
	"time"
)

// Config - конфигурация Circuit Breaker
type Config struct {
	// Enabled - включить Circuit Breaker
	Enabled bool

	// Name - имя для логирования и callback'ов
	Name string

	// MaxFailures - серия ошибок для открытия circuit
	MaxFailures uint32

	// Timeout - время в Open состоянии перед переходом в Half-Open
	Timeout time.Duration

	// MaxConcurrentCalls - максимальное количество одновременных вызовов
	// 0 = без ограничений
	MaxConcurrentCalls uint32

	// SuccessThreshold - количество успешных вызовов в Half-Open для закрытия
	SuccessThreshold uint32

	// OnStateChange - callback при изменении состояния
	OnStateChange func(name string, from State, to State)

	// IsFailure - классификатор ошибок. Возвращает true если ошибка
	// должна учитываться как сбой цели. nil = любая ошибка считается
	// сбоем. Ошибка, для которой IsFailure вернул false, возвращается
	// вызывающему, но счетчик сбоев не трогает: нарушение ограничения
	// в данных не означает что база лежит.
	IsFailure func(err error) bool

	// ShouldTrip - своя логика открытия circuit.
	// nil = открытие по серии MaxFailures последовательных ошибок
	ShouldTrip func(counts Counts) bool
}

// Validate - валидация конфигурации
func (c *Config) Validate() error {
	if c.MaxFailures == 0 {
		return fmt.Errorf("MaxFailures must be greater than 0")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be greater than 0")
	}

	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1 // По умолчанию 1 успешный вызов
	}

	if c.Name == "" {
		c.Name = "circuit-breaker"
	}

	return nil
}

// DefaultConfig - конфигурация по умолчанию
func DefaultConfig(name string) Config {
	return Config{
		Enabled:            true,
		Name:               name,
		MaxFailures:        5,
		Timeout:            60 * time.Second,
		MaxConcurrentCalls: 0, // Без ограничений
		SuccessThreshold:   2,
	}
}
