package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultPGHost        = "127.0.0.1"
	DefaultPGPort        = 5432
	DefaultPGUser        = "postgres"
	DefaultPGDatabase    = "bridgelet"
	DefaultPGSSLMode     = "disable"
	DefaultScyllaHost    = "127.0.0.1"
	DefaultScyllaKeyspace = "chat"
	DefaultEventExchange = "bridgelet.events"
)

type Config struct {
	Log         LogConfig         `toml:"log"`
	Server      ServerConfig      `toml:"server"`
	Telegram    TelegramConfig    `toml:"telegram"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Scylla      ScyllaConfig      `toml:"scylla"`
	Core        CoreConfig        `toml:"core"`
	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Events      EventsConfig      `toml:"events"`
	Outbound    OutboundConfig    `toml:"outbound"`
	Replies     RepliesConfig     `toml:"replies"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// TelegramConfig maps webhook business-account names to bot tokens.
type TelegramConfig struct {
	Accounts map[string]string `toml:"accounts"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type ScyllaConfig struct {
	Hosts    []string `toml:"hosts"`
	Keyspace string   `toml:"keyspace"`
}

// CoreConfig points at the GraphQL application core.
type CoreConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// ObjectStoreConfig points at the presigned upload/download service.
type ObjectStoreConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type EventsConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
}

// OutboundConfig guards the operator-facing relay endpoint.
type OutboundConfig struct {
	APIKey string `toml:"api_key"`
}

// RepliesConfig holds the canned replies sent back through the channel.
// Texts are configurable; defaults match the behaviour of the original bot.
type RepliesConfig struct {
	Greeting          string `toml:"greeting"`
	BotSender         string `toml:"bot_sender"`
	UnsupportedFormat string `toml:"unsupported_format"`
	TextFirst         string `toml:"text_first"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Scylla: ScyllaConfig{
			Hosts:    []string{DefaultScyllaHost},
			Keyspace: DefaultScyllaKeyspace,
		},
		Events: EventsConfig{
			Exchange: DefaultEventExchange,
		},
		Replies: RepliesConfig{
			Greeting:          "🤖💬\nHello%s!\nHow can we help you?",
			BotSender:         "🤖💬\nHello my brother from another mother!",
			UnsupportedFormat: "🤖💬\nWe cannot process this message format yet.\nSorry for the temporary inconvenience!",
			TextFirst:         "🤖💬\nPlease describe your issue in text first, then attach files.",
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
