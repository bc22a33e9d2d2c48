package configuration

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type MongoConfig struct {
	Uri             string `json:"uri" envconfig:"MONGO_URI"`
	Database        string `json:"database" envconfig:"MONGO_DATABASE"`
	ChatsCollection string `json:"chatsCollection" envconfig:"MONGO_CHATS_COLLECTION"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port" envconfig:"APP_PORT"`
	SocketPort     int      `json:"socket_port" envconfig:"SOCKET_PORT"`
	SocketRoute    string   `json:"socket_route" envconfig:"SOCKET_ROUTE"`
	AllowedOrigins []string `json:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

type Config struct {
	ChatDatabase MongoConfig  `json:"mongo"`
	Server       ServerConfig `json:"server"`
}

// LoadConfig reads the JSON config file, then applies environment overrides.
// A missing file is fine when the environment carries everything; a missing
// Mongo URI selects the in-memory chat store.
func LoadConfig(configPath string) (*Config, error) {
	// matches the original deployment's config.env; absence is not an error
	_ = godotenv.Load("config.env")

	config := Config{
		ChatDatabase: MongoConfig{
			Database:        "social-media",
			ChatsCollection: "chats",
		},
		Server: ServerConfig{
			AppPort:     3000,
			SocketPort:  3001,
			SocketRoute: "socket",
		},
	}

	if file, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	if err := envconfig.Process("", &config.ChatDatabase); err != nil {
		return nil, fmt.Errorf("process mongo env: %w", err)
	}
	if err := envconfig.Process("", &config.Server); err != nil {
		return nil, fmt.Errorf("process server env: %w", err)
	}

	return &config, nil
}
