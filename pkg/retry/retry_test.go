package retry

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

func newTestBatch(t *testing.T) *frame.Batch {
	t.Helper()

	f, err := frame.FromRows([]string{"id", "name"}, [][]any{
		{1, "alpha"},
		{2, "beta"},
	})
	if err != nil {
		t.Fatalf("Failed to build frame: %v", err)
	}

	return frame.NewBatch("dbo.orders", f)
}

func TestRetryer_Success(t *testing.T) {
	config := EnableRetry(3, 100*time.Millisecond)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return nil // Success on first attempt
	}

	err = retryer.Do(context.Background(), fn)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryer_SuccessAfterRetries(t *testing.T) {
	config := EnableRetry(5, 10*time.Millisecond)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("i/o timeout")
		}
		return nil // Success on 3rd attempt
	}

	start := time.Now()
	err = retryer.Do(context.Background(), fn)
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	// Проверяем что были задержки
	if duration < 20*time.Millisecond {
		t.Errorf("Expected delays between retries, duration was too short: %v", duration)
	}
}

func TestRetryer_MaxAttemptsExceeded(t *testing.T) {
	config := EnableRetry(3, 10*time.Millisecond)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return errors.New("connection reset by peer")
	}

	err = retryer.Do(context.Background(), fn)
	if err == nil {
		t.Error("Expected error after max attempts")
	}

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryer_TransientDefaults(t *testing.T) {
	config := EnableRetry(3, 5*time.Millisecond)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	// Временный сбой - повторяем до лимита
	attempts := 0
	fn1 := func(ctx context.Context) error {
		attempts++
		return errors.New("driver: bad connection")
	}

	retryer.Do(context.Background(), fn1)
	if attempts != 3 {
		t.Errorf("Expected 3 attempts for transient error, got %d", attempts)
	}

	// Нарушение ограничения - повтор не поможет, одна попытка
	attempts = 0
	fn2 := func(ctx context.Context) error {
		attempts++
		return errors.New("mssql: Violation of PRIMARY KEY constraint 'PK_orders'")
	}

	err = retryer.Do(context.Background(), fn2)
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for constraint violation, got %d", attempts)
	}

	if err == nil || !strings.Contains(err.Error(), "non-retryable") {
		t.Errorf("Expected non-retryable error, got: %v", err)
	}
}

func TestRetryer_ExponentialBackoff(t *testing.T) {
	config := EnableRetry(4, 100*time.Millisecond)
	config.BackoffStrategy = BackoffExponential
	config.BackoffMultiplier = 2.0
	config.Jitter = 0 // Отключаем jitter для предсказуемости

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	delays := []time.Duration{}
	attempts := 0
	lastAttempt := time.Now()

	fn := func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastAttempt))
		}
		lastAttempt = time.Now()
		return errors.New("i/o timeout")
	}

	retryer.Do(context.Background(), fn)

	// Проверяем что задержки увеличиваются экспоненциально
	// Ожидаем: 100ms, 200ms, 400ms
	if len(delays) < 2 {
		t.Fatalf("Expected at least 2 delays, got %d", len(delays))
	}

	// Проверяем что вторая задержка примерно в 2 раза больше первой
	ratio := float64(delays[1]) / float64(delays[0])
	if ratio < 1.8 || ratio > 2.2 {
		t.Errorf("Expected exponential backoff ratio ~2.0, got %.2f (delays: %v, %v)", ratio, delays[0], delays[1])
	}
}

func TestRetryer_ConstantBackoff(t *testing.T) {
	config := EnableRetry(3, 50*time.Millisecond)
	config.BackoffStrategy = BackoffConstant
	config.Jitter = 0

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	delays := []time.Duration{}
	attempts := 0
	var lastTime time.Time

	fn := func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastTime))
		}
		lastTime = time.Now()
		return errors.New("i/o timeout")
	}

	retryer.Do(context.Background(), fn)

	// Проверяем что задержки постоянные
	for _, delay := range delays {
		if delay < 45*time.Millisecond || delay > 55*time.Millisecond {
			t.Errorf("Expected constant delay ~50ms, got %v", delay)
		}
	}
}

func TestRetryer_ContextCancellation(t *testing.T) {
	config := EnableRetry(10, 100*time.Millisecond)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel() // Cancel после второй попытки
		}
		return errors.New("broken pipe")
	}

	err = retryer.Do(ctx, fn)
	if err == nil {
		t.Error("Expected context cancellation error")
	}

	// Должно быть 2-3 попытки (вторая провалилась и cancel, возможно третья началась)
	if attempts > 3 {
		t.Errorf("Expected max 3 attempts with context cancellation, got %d", attempts)
	}
}

func TestRetryer_OnRetryCallback(t *testing.T) {
	callbackCalls := 0
	config := EnableRetry(3, 10*time.Millisecond)
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		callbackCalls++
	}

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return errors.New("i/o timeout")
	}

	retryer.Do(context.Background(), fn)

	// OnRetry вызывается перед каждым повтором (не перед первой попыткой)
	// 3 попытки = 2 повтора = 2 callback calls
	expectedCallbacks := 2
	if callbackCalls != expectedCallbacks {
		t.Errorf("Expected %d callback calls, got %d", expectedCallbacks, callbackCalls)
	}
}

func TestRetryer_DoBatchDLQ(t *testing.T) {
	dlqFile := "test_dlq.json"
	defer os.Remove(dlqFile)

	config := EnableRetryWithDLQ(2, 10*time.Millisecond, dlqFile)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}
	defer retryer.Close()

	fn := func(ctx context.Context) error {
		return errors.New("timeout expired")
	}

	batch := newTestBatch(t)
	err = retryer.DoBatch(context.Background(), fn, batch)
	if err == nil {
		t.Error("Expected error")
	}

	// Проверяем что батч попал в DLQ
	dlq := retryer.GetDLQ()
	if dlq == nil {
		t.Fatal("DLQ should not be nil")
	}

	entries := dlq.Get()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 DLQ entry, got %d", len(entries))
	}

	if entries[0].FailureType != "max_attempts_exceeded" {
		t.Errorf("Expected failure type 'max_attempts_exceeded', got '%s'", entries[0].FailureType)
	}

	if entries[0].Batch == nil {
		t.Fatal("Expected batch in DLQ entry")
	}

	if entries[0].Batch.Table != "dbo.orders" {
		t.Errorf("Expected batch table 'dbo.orders', got '%s'", entries[0].Batch.Table)
	}
}

func TestRetryer_NonRetryableDLQ(t *testing.T) {
	dlqFile := "test_dlq_nonretryable.json"
	defer os.Remove(dlqFile)

	config := EnableRetryWithDLQ(3, 10*time.Millisecond, dlqFile)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}
	defer retryer.Close()

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return errors.New("mssql: Violation of PRIMARY KEY constraint 'PK_orders'")
	}

	err = retryer.DoBatch(context.Background(), fn, newTestBatch(t))
	if err == nil {
		t.Error("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for constraint violation, got %d", attempts)
	}

	// Повтор нарушение ограничения не исправит, но батч не теряется
	entries := retryer.GetDLQ().Get()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 DLQ entry, got %d", len(entries))
	}
	if entries[0].FailureType != "non_retryable" {
		t.Errorf("Expected failure type 'non_retryable', got '%s'", entries[0].FailureType)
	}
}

func TestRetryer_DLQRequeue(t *testing.T) {
	dlqFile := "test_dlq_requeue.json"
	defer os.Remove(dlqFile)

	config := EnableRetryWithDLQ(2, 5*time.Millisecond, dlqFile)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}
	defer retryer.Close()

	fn := func(ctx context.Context) error {
		return errors.New("i/o timeout")
	}

	batch := newTestBatch(t)
	original, err := batch.Frame()
	if err != nil {
		t.Fatalf("Failed to decode original batch: %v", err)
	}

	retryer.DoBatch(context.Background(), fn, batch)

	entries := retryer.GetDLQ().Get()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 DLQ entry, got %d", len(entries))
	}

	// Восстанавливаем датафрейм из DLQ и сравниваем с исходным
	restored, err := entries[0].Requeue()
	if err != nil {
		t.Fatalf("Failed to requeue entry: %v", err)
	}

	if !restored.Equal(original) {
		t.Errorf("Requeued frame differs from original: %d rows vs %d", restored.NumRows(), original.NumRows())
	}
}

func TestRetryer_ContextCancelledDLQ(t *testing.T) {
	dlqFile := "test_dlq_cancelled.json"
	defer os.Remove(dlqFile)

	config := EnableRetryWithDLQ(5, 50*time.Millisecond, dlqFile)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}
	defer retryer.Close()

	ctx, cancel := context.WithCancel(context.Background())

	fn := func(ctx context.Context) error {
		cancel() // Отмена на первой попытке
		return errors.New("i/o timeout")
	}

	err = retryer.DoBatch(ctx, fn, newTestBatch(t))
	if err == nil {
		t.Error("Expected context cancellation error")
	}

	// Батч не должен потеряться при отмене контекста
	entries := retryer.GetDLQ().Get()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 DLQ entry, got %d", len(entries))
	}

	if entries[0].FailureType != "context_cancelled" {
		t.Errorf("Expected failure type 'context_cancelled', got '%s'", entries[0].FailureType)
	}
}

func TestRetryer_RetryableErrors(t *testing.T) {
	config := EnableRetry(3, 10*time.Millisecond)
	config.RetryableErrors = []string{"timeout", "connection refused"}

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	// Retryable error
	attempts := 0
	fn1 := func(ctx context.Context) error {
		attempts++
		return errors.New("connection refused")
	}

	retryer.Do(context.Background(), fn1)
	if attempts != 3 {
		t.Errorf("Expected 3 retries for retryable error, got %d", attempts)
	}

	// Non-retryable error
	attempts = 0
	fn2 := func(ctx context.Context) error {
		attempts++
		return errors.New("invalid input")
	}

	retryer.Do(context.Background(), fn2)
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetryer_Disabled(t *testing.T) {
	config := DefaultConfig() // disabled by default
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return errors.New("i/o timeout")
	}

	err = retryer.Do(context.Background(), fn)
	if err == nil {
		t.Error("Expected error when retry disabled")
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt when retry disabled, got %d", attempts)
	}
}
