package config

import "time"

// DBConfig contains PostgreSQL configuration for the aggregation store.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"entitymetrics"`
	Password string `env:"PASSWORD" envDefault:"entitymetrics"`
	Name     string `env:"NAME"     envDefault:"entitymetrics"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// MaxOpenConns bounds the pool; batch loads hold one connection per in-flight query.
	MaxOpenConns int           `env:"MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS"    envDefault:"10"`
	ConnMaxIdle  time.Duration `env:"CONN_MAX_IDLE"     envDefault:"5m"`
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration. Exactly one of direct, sentinel or
// cluster mode is used, in that order of precedence: cluster, sentinel, direct.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
