package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/mssqlframe/pkg/archive"
	"github.com/ruslano69/mssqlframe/pkg/brokers"
	"github.com/ruslano69/mssqlframe/pkg/resultlog"
	"github.com/ruslano69/mssqlframe/pkg/retry"
)

// Config содержит полную конфигурацию конвейера загрузки
type Config struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Source SourceConfig `yaml:"source"`
	Target TargetConfig `yaml:"target"`

	// Archive включает снимок целевой таблицы перед записью. Снимок
	// делается только вместе с target.adjust: без согласования схемы
	// разрушительного DDL не бывает.
	Archive *archive.Config `yaml:"archive,omitempty"`

	// ResultLog включает публикацию итога прогона в Redis.
	// Имя конвейера служит именем результата.
	ResultLog *resultlog.Config `yaml:"result_log,omitempty"`

	Audit AuditConfig `yaml:"audit"`

	// Retry оборачивает запись каждого батча. Отсутствие блока для
	// брокерных источников означает повторы по умолчанию, для
	// остальных — одну попытку.
	Retry *RetryConfig `yaml:"retry,omitempty"`

	// Breaker защищает целевую базу в цикле потребления из брокера.
	// Отсутствие блока для брокерных источников означает circuit
	// breaker с настройками по умолчанию.
	Breaker *BreakerConfig `yaml:"circuit_breaker,omitempty"`
}

// SourceConfig определяет источник кадра: СУБД, файл или брокер сообщений
type SourceConfig struct {
	Type    string        `yaml:"type"`              // mssql, mysql, postgres, sqlite, csv, xlsx, rabbitmq, kafka
	DSN     string        `yaml:"dsn,omitempty"`     // строка подключения (для СУБД)
	Query   string        `yaml:"query,omitempty"`   // SELECT для извлечения данных
	Table   string        `yaml:"table,omitempty"`   // чтение таблицы целиком вместо query
	Schema  string        `yaml:"schema,omitempty"`  // схема по умолчанию (mssql, postgres)
	Path    string        `yaml:"path,omitempty"`    // путь к файлу (csv, xlsx)
	Sheet   string        `yaml:"sheet,omitempty"`   // имя листа (xlsx, пустое = первый лист)
	Broker  *BrokerConfig `yaml:"broker,omitempty"`  // подключение к брокеру (rabbitmq, kafka)
	Timeout int           `yaml:"timeout,omitempty"` // таймаут загрузки в секундах; к брокерам не применяется
}

// BrokerConfig определяет подключение к брокеру-источнику.
// Тип брокера берется из source.type.
type BrokerConfig struct {
	// RabbitMQ
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Queue    string `yaml:"queue,omitempty"`
	VHost    string `yaml:"vhost,omitempty"`
	TLS      bool   `yaml:"tls,omitempty"`
	Durable  bool   `yaml:"durable,omitempty"` // должно совпадать с существующей очередью

	// Kafka
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
	Group   string   `yaml:"group,omitempty"` // consumer group

	// MaxBatches ограничивает число батчей за прогон.
	// 0 = потреблять до отмены контекста.
	MaxBatches int `yaml:"max_batches,omitempty"`
}

// TargetConfig определяет целевую таблицу SQL Server и операцию записи
type TargetConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver,omitempty"` // mssql по умолчанию, odbc для unixODBC
	Schema string `yaml:"schema,omitempty"` // схема для неквалифицированных имен, по умолчанию dbo
	Table  string `yaml:"table"`

	// Operation — вид записи: insert (по умолчанию), update, merge, upsert
	Operation string `yaml:"operation,omitempty"`

	// MatchColumns — столбцы сопоставления строк для update, merge и
	// upsert. Пусто = первичный ключ таблицы.
	MatchColumns []string `yaml:"match_columns,omitempty"`

	// DeleteRequires сужает удаление при merge: строки таблицы
	// удаляются только при совпадении значений этих столбцов с кадром.
	DeleteRequires []string `yaml:"delete_requires,omitempty"`

	// Adjust разрешает движку создавать и изменять объекты SQL при
	// расхождении кадра со схемой таблицы.
	Adjust bool `yaml:"adjust,omitempty"`

	// Timestamps включает служебные столбцы _time_insert и _time_update.
	Timestamps bool `yaml:"timestamps,omitempty"`

	// AdjustAttempts — бюджет согласований схемы на одну запись, 0 = 3.
	AdjustAttempts int `yaml:"adjust_attempts,omitempty"`
}

// AuditConfig определяет журнал операций прогона
type AuditConfig struct {
	Type  string `yaml:"type,omitempty"`  // console, file, sqlite; пусто = отключено
	Path  string `yaml:"path,omitempty"`  // файл журнала (file) или файл базы (sqlite)
	Table string `yaml:"table,omitempty"` // имя таблицы журнала (sqlite), по умолчанию audit_log
	Level string `yaml:"level,omitempty"` // minimal, standard, full
}

// RetryConfig определяет повторы записи батча
type RetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	MaxAttempts    int    `yaml:"max_attempts,omitempty"`     // включая первую попытку, 0 = 3
	InitialDelayMs int    `yaml:"initial_delay_ms,omitempty"` // 0 = 1000
	MaxDelayMs     int    `yaml:"max_delay_ms,omitempty"`     // 0 = 30000
	Backoff        string `yaml:"backoff,omitempty"`          // constant, linear, exponential
	DLQPath        string `yaml:"dlq_path,omitempty"`         // файл DLQ; пусто = DLQ выключен
}

// BreakerConfig определяет circuit breaker вокруг записи в цель
type BreakerConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxFailures int  `yaml:"max_failures,omitempty"` // серия сбоев для открытия, 0 = 5
	Timeout     int  `yaml:"timeout,omitempty"`      // секунды в Open перед Half-Open, 0 = 60
}

// LoadConfig загружает конфигурацию из YAML файла
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.SetDefaults()

	return &config, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}

	if c.Archive != nil {
		if err := c.Archive.Validate(); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}

	if c.ResultLog != nil {
		if err := c.ResultLog.Validate(); err != nil {
			return fmt.Errorf("result_log: %w", err)
		}
	}

	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}

	if c.Breaker != nil {
		if err := c.Breaker.Validate(); err != nil {
			return fmt.Errorf("circuit_breaker: %w", err)
		}
	}

	return nil
}

// Validate проверяет корректность SourceConfig
func (s *SourceConfig) Validate() error {
	if s.Type == "" {
		return fmt.Errorf("type is required")
	}

	switch s.Type {
	case "mssql", "mysql", "postgres", "sqlite":
		if s.DSN == "" {
			return fmt.Errorf("dsn is required for type '%s'", s.Type)
		}
		if s.Query == "" && s.Table == "" {
			return fmt.Errorf("query or table is required for type '%s'", s.Type)
		}
		if s.Query != "" && s.Table != "" {
			return fmt.Errorf("query and table are mutually exclusive")
		}

	case "csv", "xlsx":
		if s.Path == "" {
			return fmt.Errorf("path is required for type '%s'", s.Type)
		}

	case "rabbitmq", "kafka":
		if s.Broker == nil {
			return fmt.Errorf("broker configuration is required for type '%s'", s.Type)
		}
		if err := s.Broker.Validate(s.Type); err != nil {
			return fmt.Errorf("broker: %w", err)
		}

	default:
		return fmt.Errorf("unsupported type '%s', must be one of: mssql, mysql, postgres, sqlite, csv, xlsx, rabbitmq, kafka", s.Type)
	}

	if s.Sheet != "" && s.Type != "xlsx" {
		return fmt.Errorf("sheet is only supported for type 'xlsx'")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0")
	}

	return nil
}

// IsBroker сообщает, является ли источник брокером сообщений
func (s *SourceConfig) IsBroker() bool {
	return s.Type == "rabbitmq" || s.Type == "kafka"
}

// Validate проверяет корректность BrokerConfig для заданного типа брокера
func (b *BrokerConfig) Validate(brokerType string) error {
	switch brokerType {
	case "rabbitmq":
		if b.Queue == "" {
			return fmt.Errorf("queue is required for rabbitmq")
		}
	case "kafka":
		if len(b.Brokers) == 0 {
			return fmt.Errorf("brokers list is required for kafka")
		}
		if b.Topic == "" {
			return fmt.Errorf("topic is required for kafka")
		}
	}

	if b.MaxBatches < 0 {
		return fmt.Errorf("max_batches must be >= 0")
	}

	return nil
}

// toBrokers переводит блок конфигурации в параметры подключения брокера
func (b *BrokerConfig) toBrokers(brokerType string) brokers.Config {
	return brokers.Config{
		Type:          brokerType,
		Host:          b.Host,
		Port:          b.Port,
		User:          b.User,
		Password:      b.Password,
		Queue:         b.Queue,
		VHost:         b.VHost,
		UseTLS:        b.TLS,
		Durable:       b.Durable,
		Brokers:       b.Brokers,
		Topic:         b.Topic,
		ConsumerGroup: b.Group,
	}
}

// Validate проверяет корректность TargetConfig
func (t *TargetConfig) Validate() error {
	if t.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if t.Table == "" {
		return fmt.Errorf("table is required")
	}

	switch t.Operation {
	case "", "insert", "update", "merge", "upsert":
	default:
		return fmt.Errorf("unsupported operation '%s', must be one of: insert, update, merge, upsert", t.Operation)
	}

	switch t.Driver {
	case "", "mssql", "odbc":
	default:
		return fmt.Errorf("unsupported driver '%s', must be 'mssql' or 'odbc'", t.Driver)
	}

	if len(t.MatchColumns) > 0 && (t.Operation == "" || t.Operation == "insert") {
		return fmt.Errorf("match_columns are not used for operation 'insert'")
	}
	if len(t.DeleteRequires) > 0 && t.Operation != "merge" {
		return fmt.Errorf("delete_requires is only supported for operation 'merge'")
	}
	if t.AdjustAttempts < 0 {
		return fmt.Errorf("adjust_attempts must be >= 0")
	}

	return nil
}

// Validate проверяет корректность AuditConfig
func (a *AuditConfig) Validate() error {
	switch a.Type {
	case "", "none", "console":
	case "file", "sqlite":
		if a.Path == "" {
			return fmt.Errorf("path is required when type is '%s'", a.Type)
		}
	default:
		return fmt.Errorf("unsupported type '%s', must be one of: console, file, sqlite", a.Type)
	}

	switch a.Level {
	case "", "minimal", "standard", "full":
	default:
		return fmt.Errorf("unsupported level '%s', must be one of: minimal, standard, full", a.Level)
	}

	return nil
}

// Validate проверяет корректность RetryConfig
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0")
	}
	if r.InitialDelayMs < 0 || r.MaxDelayMs < 0 {
		return fmt.Errorf("delays must be >= 0")
	}
	// Остальное проверяет пакет retry на собранной конфигурации
	cfg := r.toRetry()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return nil
}

// toRetry собирает конфигурацию повторов: незаполненные поля получают
// значения по умолчанию, повторяются только временные сбои.
func (r *RetryConfig) toRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.Enabled = r.Enabled
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialDelayMs > 0 {
		cfg.InitialDelay = time.Duration(r.InitialDelayMs) * time.Millisecond
	}
	if r.MaxDelayMs > 0 {
		cfg.MaxDelay = time.Duration(r.MaxDelayMs) * time.Millisecond
	}
	if r.Backoff != "" {
		cfg.BackoffStrategy = retry.BackoffStrategy(r.Backoff)
	}
	if r.DLQPath != "" {
		cfg.DLQ.Enabled = true
		cfg.DLQ.FilePath = r.DLQPath
	}
	return cfg
}

// Validate проверяет корректность BreakerConfig
func (b *BreakerConfig) Validate() error {
	if b.MaxFailures < 0 {
		return fmt.Errorf("max_failures must be >= 0")
	}
	if b.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0")
	}
	return nil
}

// SetDefaults устанавливает значения по умолчанию для необязательных полей
func (c *Config) SetDefaults() {
	if c.Source.Timeout == 0 && !c.Source.IsBroker() {
		c.Source.Timeout = 60 // 60 секунд по умолчанию
	}

	if c.Target.Operation == "" {
		c.Target.Operation = "insert"
	}

	if c.Audit.Level == "" {
		c.Audit.Level = "standard"
	}
	if c.Audit.Type == "sqlite" && c.Audit.Table == "" {
		c.Audit.Table = "audit_log"
	}

	// Цикл потребления из брокера всегда идет с повторами и circuit
	// breaker: явный блок в конфигурации уточняет их, отсутствие —
	// включает значения по умолчанию.
	if c.Source.IsBroker() {
		if c.Retry == nil {
			c.Retry = &RetryConfig{Enabled: true}
		}
		if c.Breaker == nil {
			c.Breaker = &BreakerConfig{Enabled: true}
		}
	}
}
