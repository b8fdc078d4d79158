package config

import "time"

const (
	DriverMemory = "memory"
	DriverFS     = "fs"
	DriverS3     = "s3"
	DriverNATSKV = "natskv"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Store      StoreConfig      `yaml:"store"`
	Authz      AuthzConfig      `yaml:"authz"`
	Export     ExportConfig     `yaml:"export"`
	Visibility VisibilityConfig `yaml:"visibility"`
	Database   DatabaseConfig   `yaml:"database"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// StorageConfig selects the object backend documents live in. Only the
// section matching Driver is read.
type StorageConfig struct {
	Driver string      `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	FS     FSConfig    `yaml:"fs"`
	S3     S3Config    `yaml:"s3"`
	NATS   NATSConfig  `yaml:"nats"`
	Redis  RedisConfig `yaml:"redis"`
	Mongo  MongoConfig `yaml:"mongo"`
}

type FSConfig struct {
	Root string `yaml:"root" env:"STORAGE_FS_ROOT" env-default:"./var/worklog"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"            env:"STORAGE_S3_BUCKET"`
	Region          string `yaml:"region"            env:"STORAGE_S3_REGION"            env-default:"auto"`
	Endpoint        string `yaml:"endpoint"          env:"STORAGE_S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id"     env:"STORAGE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style"    env:"STORAGE_S3_USE_PATH_STYLE"`
}

// NATSConfig either dials URL or, with Embedded set, starts an in-process
// JetStream server persisting to StoreDir.
type NATSConfig struct {
	URL      string `yaml:"url"       env:"STORAGE_NATS_URL"       env-default:"nats://127.0.0.1:4222"`
	Bucket   string `yaml:"bucket"    env:"STORAGE_NATS_BUCKET"    env-default:"worklog"`
	Embedded bool   `yaml:"embedded"  env:"STORAGE_NATS_EMBEDDED"`
	StoreDir string `yaml:"store_dir" env:"STORAGE_NATS_STORE_DIR" env-default:"./var/nats"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"      env:"STORAGE_REDIS_ADDR"      env-default:"localhost:6379"`
	Password  string `yaml:"password"  env:"STORAGE_REDIS_PASSWORD"`
	DB        int    `yaml:"db"        env:"STORAGE_REDIS_DB"        env-default:"0"`
	Namespace string `yaml:"namespace" env:"STORAGE_REDIS_NAMESPACE" env-default:"worklog:"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"        env:"STORAGE_MONGO_URI"        env-default:"mongodb://localhost:27017"`
	Database   string `yaml:"database"   env:"STORAGE_MONGO_DATABASE"   env-default:"worklog"`
	Collection string `yaml:"collection" env:"STORAGE_MONGO_COLLECTION" env-default:"documents"`
}

type StoreConfig struct {
	Prefix         string        `yaml:"prefix"          env:"STORE_PREFIX"          env-default:"data/"`
	MaxAttempts    int           `yaml:"max_attempts"    env:"STORE_MAX_ATTEMPTS"    env-default:"5"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"STORE_INITIAL_BACKOFF" env-default:"20ms"`
	CacheTTL       time.Duration `yaml:"cache_ttl"       env:"STORE_CACHE_TTL"       env-default:"0s"`
}

type AuthzConfig struct {
	Mode          string `yaml:"mode"           env:"AUTHZ_MODE"           env-default:"enforce"`
	AllowDisabled bool   `yaml:"allow_disabled" env:"AUTHZ_ALLOW_DISABLED"`
	PolicyFile    string `yaml:"policy_file"    env:"AUTHZ_POLICY_FILE"`
}

type ExportConfig struct {
	MaxPerMinute int    `yaml:"max_per_minute" env:"EXPORT_MAX_PER_MINUTE" env-default:"5"`
	KeyPrefix    string `yaml:"key_prefix"     env:"EXPORT_KEY_PREFIX"     env-default:"exports/weekly/"`
}

type VisibilityConfig struct {
	Strategy string `yaml:"strategy" env:"VISIBILITY_STRATEGY" env-default:"naive"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}
