package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Etcd       EtcdConfig       `mapstructure:"etcd"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Checkout   CheckoutConfig   `mapstructure:"checkout"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// MongoDBConfig names the portal database and its collections.
type MongoDBConfig struct {
	URI         string            `mapstructure:"uri"`
	Database    string            `mapstructure:"database"`
	Collection  string            `mapstructure:"collection"` // audit log
	Collections CollectionsConfig `mapstructure:"collections"`
}

type CollectionsConfig struct {
	Services    string `mapstructure:"services"`
	Categories  string `mapstructure:"categories"`
	Engagements string `mapstructure:"engagements"`
	Profiles    string `mapstructure:"profiles"`
	Ads         string `mapstructure:"ads"`
}

type GatewayConfig struct {
	Port       int           `mapstructure:"port"`
	Host       string        `mapstructure:"host"`
	AdminToken string        `mapstructure:"admin_token"`
	Retention  time.Duration `mapstructure:"retention"`
	SweepEvery time.Duration `mapstructure:"sweep_every"`
}

// StorefrontConfig configures the cart/checkout host and the collaborators it calls.
type StorefrontConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	PortalURL      string        `mapstructure:"portal_url"`
	OrderService   string        `mapstructure:"order_service"`
	OrderAddr      string        `mapstructure:"order_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ReceiptTTL     time.Duration `mapstructure:"receipt_ttl"`
	SessionIdle    time.Duration `mapstructure:"session_idle"`
}

type CheckoutConfig struct {
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
}

type RecommendConfig struct {
	Limit int `mapstructure:"limit"`
}

type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Load reads the YAML file at configPath. Values from an optional .env file and
// PORTAL_* environment variables override the file (PORTAL_REDIS_ADDR -> redis.addr).
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("portal")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("etcd.lease_ttl", 30)
	v.SetDefault("mongodb.database", "citizen_portal")
	v.SetDefault("mongodb.collection", "audit_logs")
	v.SetDefault("mongodb.collections.services", "services")
	v.SetDefault("mongodb.collections.categories", "categories")
	v.SetDefault("mongodb.collections.engagements", "engagements")
	v.SetDefault("mongodb.collections.profiles", "profiles")
	v.SetDefault("mongodb.collections.ads", "ads")
	v.SetDefault("gateway.retention", 365*24*time.Hour)
	v.SetDefault("gateway.sweep_every", 24*time.Hour)
	v.SetDefault("storefront.order_service", "order-service")
	v.SetDefault("storefront.order_addr", "localhost:50052")
	v.SetDefault("storefront.request_timeout", 10*time.Second)
	v.SetDefault("storefront.receipt_ttl", 30*time.Minute)
	v.SetDefault("storefront.session_idle", 30*time.Minute)
	v.SetDefault("checkout.submit_timeout", 15*time.Second)
	v.SetDefault("recommend.limit", 5)
	v.SetDefault("breaker.max_requests", 3)
	v.SetDefault("breaker.interval", 15*time.Second)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.min_requests", 3)
	v.SetDefault("breaker.failure_ratio", 0.6)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
