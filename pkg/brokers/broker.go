package brokers

import (
	"context"
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// MessageBroker представляет универсальный интерфейс для работы с очередями
// сообщений. Поддерживает RabbitMQ и Apache Kafka.
type MessageBroker interface {
	// Connect устанавливает соединение с брокером
	Connect(ctx context.Context) error

	// Close закрывает соединение с брокером
	Close() error

	// Send отправляет сообщение в очередь
	// message - тело сообщения (JSON-батч датафрейма)
	Send(ctx context.Context, message []byte) error

	// Receive получает сообщение из очереди
	// Блокирующий вызов - ждет пока не придет сообщение или не истечет timeout
	Receive(ctx context.Context) ([]byte, error)

	// Ping проверяет доступность брокера
	Ping(ctx context.Context) error

	// GetBrokerType возвращает тип брокера (rabbitmq, kafka)
	GetBrokerType() string
}

// Config содержит параметры подключения к message broker
type Config struct {
	Type       string // rabbitmq, kafka
	Host       string // Хост (для RabbitMQ)
	Port       int    // Порт (для RabbitMQ)
	User       string // Пользователь (для RabbitMQ)
	Password   string // Пароль (для RabbitMQ)
	Queue      string // Имя очереди (для RabbitMQ)
	VHost      string // Virtual host (для RabbitMQ, по умолчанию "/")
	UseTLS     bool   // Использовать TLS/SSL (amqps://) для RabbitMQ
	Exchange   string // RabbitMQ exchange (пустая строка = default exchange)
	RoutingKey string // RabbitMQ routing key (если пустой, используется имя очереди)

	// RabbitMQ параметры очереди (ВАЖНО: должны совпадать с существующей очередью!)
	Durable    bool // Очередь переживает перезапуск RabbitMQ
	AutoDelete bool // Очередь удаляется когда нет consumer'ов
	Exclusive  bool // Очередь доступна только одному соединению

	// Kafka специфичные параметры
	Brokers       []string // Список Kafka brokers (например: ["localhost:9092", "localhost:9093"])
	Topic         string   // Имя Kafka topic
	ConsumerGroup string   // Consumer group ID (по умолчанию "msframe-consumer-group")
}

// New создает новый MessageBroker на основе конфигурации
func New(cfg Config) (MessageBroker, error) {
	switch cfg.Type {
	case "rabbitmq":
		return NewRabbitMQ(cfg)
	case "kafka":
		return NewKafka(cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s (supported: rabbitmq, kafka)", cfg.Type)
	}
}

// SendBatch сериализует батч датафрейма в JSON и отправляет его в очередь
func SendBatch(ctx context.Context, b MessageBroker, batch *frame.Batch) error {
	data, err := batch.EncodeJSON()
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	return b.Send(ctx, data)
}

// ReceiveBatch получает сообщение из очереди и декодирует его как
// батч датафрейма
func ReceiveBatch(ctx context.Context, b MessageBroker) (*frame.Batch, error) {
	data, err := b.Receive(ctx)
	if err != nil {
		return nil, err
	}

	batch, err := frame.DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	return batch, nil
}
