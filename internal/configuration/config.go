package configuration

import (
	"encoding/json"
	"os"

	"github.com/joho/godotenv"
)

type MongoConfig struct {
	Uri      string `json:"uri"`
	Database string `json:"database"`
}

type RedisConfig struct {
	Url string `json:"url"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
}

type ServerConfig struct {
	AppPort     int    `json:"app_port"`
	SocketPort  int    `json:"socket_port"`
	SocketRoute string `json:"socket_route"`
	JWTSecret   string `json:"jwt_secret"`
}

type Config struct {
	Mongo  MongoConfig  `json:"mongo"`
	Redis  RedisConfig  `json:"redis"`
	SMTP   SMTPConfig   `json:"smtp"`
	Server ServerConfig `json:"server"`
}

// LoadConfig reads the JSON config file, then lets environment variables
// override the secrets so they never have to live in the file. A missing
// .env file is fine; real deployments set the variables directly.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if v := os.Getenv("MONGO_URI"); v != "" {
		config.Mongo.Uri = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		config.Redis.Url = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.Server.JWTSecret = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		config.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		config.SMTP.Username = v
	}

	return &config, nil
}
