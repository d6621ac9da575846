package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (Interaction Ledger)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (regional cache tier)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Cache tiers
	CacheEdgeTTL     time.Duration `env:"CACHE_EDGE_TTL" env-default:"5m"`
	CacheRegionalTTL time.Duration `env:"CACHE_REGIONAL_TTL" env-default:"1h"`

	// Record store connection
	RecordStoreBaseURL string        `env:"RECORD_STORE_BASE_URL" env-default:"" validate:"required"`
	RecordStoreToken   string        `env:"RECORD_STORE_TOKEN" env-default:""`
	RecordStoreTimeout time.Duration `env:"RECORD_STORE_TIMEOUT" env-default:"10s"`

	// Record store collections. Profile and merchant ids are required;
	// Load fails fast without them.
	ProfilesCollectionID     string `env:"PROFILES_COLLECTION_ID" env-default:"" validate:"required"`
	MerchantsCollectionID    string `env:"MERCHANTS_COLLECTION_ID" env-default:"" validate:"required"`
	InteractionsCollectionID string `env:"INTERACTIONS_COLLECTION_ID" env-default:""`
	ProfilePhoneField        string `env:"PROFILE_PHONE_FIELD" env-default:"Phone"`
	ProfileEmailField        string `env:"PROFILE_EMAIL_FIELD" env-default:"Email"`
	ProfileNameField         string `env:"PROFILE_NAME_FIELD" env-default:"Name"`
	MerchantNameField        string `env:"MERCHANT_NAME_FIELD" env-default:"Name"`
	MerchantUUIDField        string `env:"MERCHANT_UUID_FIELD" env-default:"Merchant UUID"`
	RegistryPageSize         int    `env:"REGISTRY_PAGE_SIZE" env-default:"100"`

	// Kafka Consumer (comm events)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"comm-events"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer (merchant gap events)
	KafkaGapTopic     string `env:"KAFKA_GAP_TOPIC" env-default:"merchant-gaps"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Durable execution facility. Empty URL means steps run locally.
	DurableRunnerURL     string        `env:"DURABLE_RUNNER_URL" env-default:""`
	DurableRunnerTimeout time.Duration `env:"DURABLE_RUNNER_TIMEOUT" env-default:"5s"`
}
