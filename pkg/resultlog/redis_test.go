package resultlog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewRunResult_Success(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stats := RunStats{
		StartedAt:   started,
		FinishedAt:  started.Add(1500 * time.Millisecond),
		RowsWritten: 42,
		Attempts:    1,
	}

	result := newRunResult("orders_load", stats, nil)

	if result.Run != "orders_load" {
		t.Errorf("Run = %q, want %q", result.Run, "orders_load")
	}
	if result.Status != "success" {
		t.Errorf("Status = %q, want %q", result.Status, "success")
	}
	if result.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500", result.DurationMs)
	}
	if result.RowsWritten != 42 {
		t.Errorf("RowsWritten = %d, want 42", result.RowsWritten)
	}
	if result.Error != nil {
		t.Errorf("Error = %v, want nil", *result.Error)
	}
}

func TestNewRunResult_Failed(t *testing.T) {
	stats := RunStats{
		StartedAt:  time.Now().Add(-2 * time.Second),
		FinishedAt: time.Now(),
		Attempts:   3,
	}

	result := newRunResult("orders_load", stats, errors.New("write failed: deadlock"))

	if result.Status != "failed" {
		t.Errorf("Status = %q, want %q", result.Status, "failed")
	}
	if result.Error == nil {
		t.Fatal("Error is nil, want message")
	}
	if *result.Error != "write failed: deadlock" {
		t.Errorf("Error = %q, want %q", *result.Error, "write failed: deadlock")
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestNewRunResult_ErrorOmittedFromJSON(t *testing.T) {
	result := newRunResult("orders_load", RunStats{}, nil)

	payload, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, present := raw["error"]; present {
		t.Error("error key present in success payload, want omitted")
	}
}

// TestPublisherIntegration требует запущенного Redis.
// Адрес задается через MSSQLFRAME_TEST_REDIS_ADDR (например localhost:6379).
func TestPublisherIntegration(t *testing.T) {
	addr := os.Getenv("MSSQLFRAME_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MSSQLFRAME_TEST_REDIS_ADDR not set, skipping Redis integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pub := NewPublisher(Config{Address: addr, TTL: 60})
	defer pub.Close()

	if err := pub.Ping(ctx); err != nil {
		t.Skipf("Skipping test: Redis not available: %v", err)
	}

	// Подписываемся до публикации, чтобы поймать событие
	sub := redis.NewClient(&redis.Options{Addr: addr})
	defer sub.Close()

	pubsub := sub.Subscribe(ctx, "msframe:run:it_orders")
	defer pubsub.Close()

	// go-redis доставляет подтверждение подписки через Receive
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	started := time.Now().Add(-time.Second)
	stats := RunStats{
		StartedAt:   started,
		FinishedAt:  time.Now(),
		RowsWritten: 7,
		Attempts:    1,
	}

	err := pub.Publish(ctx, "it_orders", stats, nil)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Состояние должно читаться обратно через GET
	raw, err := sub.Get(ctx, "msframe:run:it_orders:state").Result()
	if err != nil {
		t.Fatalf("GET state failed: %v", err)
	}

	var result RunResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("Unmarshal state failed: %v", err)
	}
	if result.Status != "success" {
		t.Errorf("State status = %q, want %q", result.Status, "success")
	}
	if result.RowsWritten != 7 {
		t.Errorf("State rows_written = %d, want 7", result.RowsWritten)
	}

	// Ключ должен иметь TTL
	ttl, err := sub.TTL(ctx, "msframe:run:it_orders:state").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 60*time.Second {
		t.Errorf("State TTL = %v, want (0s, 60s]", ttl)
	}

	// Событие должно прийти подписчику
	select {
	case msg := <-pubsub.Channel():
		var event RunResult
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("Unmarshal event failed: %v", err)
		}
		if event.Run != "it_orders" {
			t.Errorf("Event run = %q, want %q", event.Run, "it_orders")
		}
	case <-time.After(5 * time.Second):
		t.Error("No pub/sub event received within 5s")
	}

	sub.Del(ctx, "msframe:run:it_orders:state")
}
