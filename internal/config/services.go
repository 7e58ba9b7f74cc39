package config

import (
	"github.com/caarlos0/env/v10"
)

// StorageConfig selects where uploaded car and profile images are written.
type StorageConfig struct {
	Type     string `env:"STORAGE_TYPE" envDefault:"local"`
	LocalDir string `env:"UPLOAD_DIR" envDefault:"uploads"`

	S3Region          string `env:"STORAGE_S3_REGION"`
	S3Bucket          string `env:"STORAGE_S3_BUCKET"`
	S3Prefix          string `env:"STORAGE_S3_PREFIX"`
	S3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	S3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	S3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`
}

// ChatStoreConfig configures the lightweight store used for chat messages.
type ChatStoreConfig struct {
	Driver string `env:"CHAT_DB_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"CHAT_DB_DSN"`
	Path   string `env:"CHAT_DB_PATH" envDefault:"data/messages.db"`
}

// BrokerConfig configures RabbitMQ. An empty URL disables publishing and
// cross-instance chat fan-out.
type BrokerConfig struct {
	URL               string `env:"BROKER_URL"`
	ModerationQueue   string `env:"BROKER_MODERATION_QUEUE" envDefault:"car.moderated"`
	ChatExchange      string `env:"BROKER_CHAT_EXCHANGE" envDefault:"chat.messages"`
	ModerationLogPath string `env:"MODERATION_LOG_PATH" envDefault:"logs/moderation.log"`
}

// PresenceConfig selects the registry that tracks which users are online.
type PresenceConfig struct {
	Backend string `env:"PRESENCE_BACKEND" envDefault:"memory"`
	Prefix  string `env:"PRESENCE_PREFIX" envDefault:"presence"`
	TTLSec  int    `env:"PRESENCE_TTL_SECONDS" envDefault:"90"`
}

func LoadStorageConfig() (StorageConfig, error) {
	var c StorageConfig
	err := env.Parse(&c)
	return c, err
}

func LoadChatStoreConfig() (ChatStoreConfig, error) {
	var c ChatStoreConfig
	err := env.Parse(&c)
	return c, err
}

func LoadBrokerConfig() (BrokerConfig, error) {
	var c BrokerConfig
	err := env.Parse(&c)
	return c, err
}

func LoadPresenceConfig() (PresenceConfig, error) {
	var c PresenceConfig
	err := env.Parse(&c)
	return c, err
}
