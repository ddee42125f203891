package config

import (
	"time"

	"taskboard/pkg/realtime"
)

type Logger struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

type HTTP struct {
	Address         string        `env:"ADDRESS,expand" envDefault:":8000"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:5173,http://localhost:3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Storage struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	// DSN is a file path for sqlite, a connection string for postgres and a
	// redis:// URL for redis.
	DSN string `env:"DSN,expand" envDefault:"kanban.db"`
}

type Realtime struct {
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	PingInterval   time.Duration `env:"PING_INTERVAL" envDefault:"30s"`
	PongWait       time.Duration `env:"PONG_WAIT" envDefault:"60s"`
	SendBuffer     int           `env:"SEND_BUFFER" envDefault:"64"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE" envDefault:"4096"`
}

func (r Realtime) Client() realtime.Config {
	return realtime.Config{
		WriteTimeout:   r.WriteTimeout,
		PingInterval:   r.PingInterval,
		PongWait:       r.PongWait,
		SendBuffer:     r.SendBuffer,
		MaxMessageSize: r.MaxMessageSize,
	}
}
