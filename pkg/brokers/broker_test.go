package brokers

import (
	"context"
	"fmt"
	"testing"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// memoryBroker — брокер в памяти для тестов без внешнего сервера
type memoryBroker struct {
	queue [][]byte
}

func (m *memoryBroker) Connect(ctx context.Context) error { return nil }
func (m *memoryBroker) Close() error                      { return nil }
func (m *memoryBroker) Ping(ctx context.Context) error    { return nil }
func (m *memoryBroker) GetBrokerType() string             { return "memory" }

func (m *memoryBroker) Send(ctx context.Context, message []byte) error {
	m.queue = append(m.queue, message)
	return nil
}

func (m *memoryBroker) Receive(ctx context.Context) ([]byte, error) {
	if len(m.queue) == 0 {
		return nil, fmt.Errorf("no messages available")
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, nil
}

func TestSendReceiveBatch(t *testing.T) {
	f, err := frame.FromRows([]string{"id", "name"}, [][]any{
		{1, "alpha"},
		{2, "beta"},
		{3, "gamma"},
	})
	if err != nil {
		t.Fatalf("Failed to build frame: %v", err)
	}

	broker := &memoryBroker{}
	ctx := context.Background()

	batch := frame.NewBatch("dbo.orders", f)
	if err := SendBatch(ctx, broker, batch); err != nil {
		t.Fatalf("SendBatch failed: %v", err)
	}

	received, err := ReceiveBatch(ctx, broker)
	if err != nil {
		t.Fatalf("ReceiveBatch failed: %v", err)
	}

	if received.Table != "dbo.orders" {
		t.Errorf("Received table = %q, want %q", received.Table, "dbo.orders")
	}

	restored, err := received.Frame()
	if err != nil {
		t.Fatalf("Failed to restore frame from batch: %v", err)
	}

	if !restored.Equal(f) {
		t.Errorf("Restored frame differs from original")
	}
}

func TestReceiveBatchInvalidPayload(t *testing.T) {
	broker := &memoryBroker{}
	ctx := context.Background()

	if err := broker.Send(ctx, []byte("not a batch")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	_, err := ReceiveBatch(ctx, broker)
	if err == nil {
		t.Error("Expected error for invalid payload, got nil")
	}
}

func TestUnsupportedBrokerType(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "msmq", cfg: Config{Type: "msmq", Queue: "test"}},
		{name: "empty", cfg: Config{}},
		{name: "unknown", cfg: Config{Type: "pulsar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil {
				t.Errorf("New(%q) expected error, got nil", tt.cfg.Type)
			}
		})
	}
}

func TestRabbitMQValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Type: "rabbitmq", Queue: "msframe-test"},
			wantErr: false,
		},
		{
			name:    "missing queue",
			cfg:     Config{Type: "rabbitmq"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker, err := NewRabbitMQ(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRabbitMQ() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && broker.GetBrokerType() != "rabbitmq" {
				t.Errorf("Expected broker type 'rabbitmq', got '%s'", broker.GetBrokerType())
			}
		})
	}
}
