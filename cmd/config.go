package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	MediaDir             string        `env:"MEDIA_DIR,default=static/uploads"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	BadgerGCInterval     time.Duration `env:"BADGER_GC_INTERVAL,default=10m"`
	PresenceSyncInterval time.Duration `env:"PRESENCE_SYNC_INTERVAL,default=30s"`
	// RedisURL switches the presence registry to the shared redis
	// implementation for multi-instance deployments. Empty keeps the
	// in-memory registry.
	RedisURL string `env:"REDIS_URL"`
}
