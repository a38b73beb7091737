package config

// Config holds all application configuration. There is no ambient
// global: the loaded value is passed explicitly into each component
// at construction time.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Broker  BrokerConfig  `mapstructure:"broker" validate:"required"`
	Store   StoreConfig   `mapstructure:"store" validate:"required"`
	Worker  WorkerConfig  `mapstructure:"worker" validate:"required"`
	Routing RoutingConfig `mapstructure:"routing" validate:"required"`
	Codec   CodecConfig   `mapstructure:"codec" validate:"required"`
	Notify  NotifyConfig  `mapstructure:"notify" validate:"required"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// BrokerConfig selects and configures the job transport.
type BrokerConfig struct {
	// Backend is the broker implementation: "redis" or "memory".
	Backend string `mapstructure:"backend" validate:"required,oneof=redis memory"`

	// RedisAddr is the broker address, required for the redis backend.
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`

	// QueueCapacity bounds the per-queue buffer of the memory backend.
	QueueCapacity int `mapstructure:"queue_capacity" validate:"gte=0"`
}

// StoreConfig selects and configures the result store.
type StoreConfig struct {
	// Backend is the result store implementation: "redis", "postgres"
	// or "memory".
	Backend string `mapstructure:"backend" validate:"required,oneof=redis postgres memory"`

	// RedisAddr is the result store address for the redis backend.
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`

	// PostgresURL is the connection string for the postgres backend.
	PostgresURL string `mapstructure:"postgres_url" validate:"required_if=Backend postgres"`
}

// WorkerConfig controls the background executor.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines pulling jobs.
	Concurrency int `mapstructure:"concurrency" validate:"required,gte=1"`

	// MaxRetries is the number of re-executions permitted after the
	// initial attempt of each job.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// PollIntervalMS is how often idle workers poll the broker.
	PollIntervalMS int `mapstructure:"poll_interval_ms" validate:"required,gte=1"`

	// BackoffEnabled toggles retry delays. When false retries are
	// re-queued immediately.
	BackoffEnabled bool `mapstructure:"backoff_enabled"`

	// BackoffBaseMS is the base delay of the exponential backoff.
	BackoffBaseMS int `mapstructure:"backoff_base_ms" validate:"gte=0"`

	// BackoffMaxMS caps the backoff delay.
	BackoffMaxMS int `mapstructure:"backoff_max_ms" validate:"gte=0"`
}

// RoutingConfig maps operation names to broker queues.
type RoutingConfig struct {
	// DefaultQueue receives operations with no explicit route.
	DefaultQueue string `mapstructure:"default_queue" validate:"required"`

	// Queues maps an operation name to the queue it is published on.
	Queues map[string]string `mapstructure:"queues"`
}

// QueueFor returns the queue the given operation is routed to.
func (r RoutingConfig) QueueFor(operation string) string {
	if q, ok := r.Queues[operation]; ok && q != "" {
		return q
	}
	return r.DefaultQueue
}

// AllQueues returns the distinct queues workers must poll, with the
// default queue first.
func (r RoutingConfig) AllQueues() []string {
	queues := []string{r.DefaultQueue}
	seen := map[string]bool{r.DefaultQueue: true}
	for _, q := range r.Queues {
		if q != "" && !seen[q] {
			seen[q] = true
			queues = append(queues, q)
		}
	}
	return queues
}

// CodecConfig selects the broker message serialization format.
type CodecConfig struct {
	Format string `mapstructure:"format" validate:"required,oneof=json msgpack"`
}

// NotifyConfig controls the WebSocket notification channel.
type NotifyConfig struct {
	// WriteTimeoutMS bounds each frame write to a listener.
	WriteTimeoutMS int `mapstructure:"write_timeout_ms" validate:"required,gte=1"`

	// PingIntervalMS is how often the server pings idle listeners to
	// detect dead connections.
	PingIntervalMS int `mapstructure:"ping_interval_ms" validate:"required,gte=1"`

	// SendBuffer is the per-listener outbound event buffer; events
	// beyond it are dropped rather than blocking the publisher.
	SendBuffer int `mapstructure:"send_buffer" validate:"required,gte=1"`
}
