package config

const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Storage struct{}

var _ StorageConfig = Storage{}

// GetTokenStore selects the credential backend: file, memory or redis
func (Storage) GetTokenStore() string {
	return GetEnv("TOKEN_STORE", StoreFile)
}

func (Storage) GetTokenFile() string {
	return GetEnv("TOKEN_FILE", ".neoping-tokens.json")
}

// GetTokenSecret returns the passphrase sealing the token file. Empty means plaintext.
func (Storage) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "neoping")
}
