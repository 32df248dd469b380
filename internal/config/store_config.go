package config

import (
	"path/filepath"
	"time"
)

type StoreBackend string

const (
	FileStoreBackend  StoreBackend = "file"
	RedisStoreBackend StoreBackend = "redis"
)

type StoreConfig interface {
	GetStoreBackend() StoreBackend
	GetStorePath() string
	GetStorePassphrase() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisTimeout() time.Duration
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBackend() StoreBackend {
	return StoreBackend(GetEnv("STORE_BACKEND", string(FileStoreBackend)))
}

func (Store) GetStorePath() string {
	return GetEnv("STORE_PATH", filepath.Join(EnvVars{}.GetDataFolder(), EnvVars{}.GetProfile()+".session.json"))
}

// GetStorePassphrase enables at-rest encryption of the file store when set.
func (Store) GetStorePassphrase() string {
	return GetEnv("TOKEN_STORE_PASSPHRASE", "")
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

func (Store) GetRedisTimeout() time.Duration {
	return GetEnvDuration("REDIS_TIMEOUT", 2*time.Second)
}
