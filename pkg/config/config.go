package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	GRPCServer      GRPCServerConfig      `mapstructure:"grpc_server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	JWT             JWTConfig             `mapstructure:"jwt"`
	Log             LogConfig             `mapstructure:"log"`
	Minio           MinioConfig           `mapstructure:"minio"`
	Session         SessionConfig         `mapstructure:"session"`
	Compress        CompressConfig        `mapstructure:"compress"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	Etcd            EtcdConfig            `mapstructure:"etcd"`
	Profiling       ProfilingConfig       `mapstructure:"profiling"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GRPCServerConfig gRPC server configuration.
type GRPCServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled              bool              `mapstructure:"enabled"`
	BootstrapServers     []string          `mapstructure:"bootstrap_servers"`
	ClientID             string            `mapstructure:"client_id"`
	GroupID              string            `mapstructure:"group_id"`
	Topics               KafkaTopicsConfig `mapstructure:"topics"`
	CommitOnDecodeError  bool              `mapstructure:"commit_on_decode_error"`
	CommitOnProcessError bool              `mapstructure:"commit_on_process_error"`
}

// KafkaTopicsConfig names the topics the service reads and writes.
type KafkaTopicsConfig struct {
	CompressRequests string `mapstructure:"compress_requests"`
	CompressEvents   string `mapstructure:"compress_events"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Secret    string `mapstructure:"secret"`
	Issuer    string `mapstructure:"issuer"`
	AdminRole string `mapstructure:"admin_role"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	OutputPrefix    string `mapstructure:"output_prefix"`
}

// SessionConfig 会话存储配置
type SessionConfig struct {
	// Backend is "memory" or "redis".
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// CompressConfig 压缩任务配置
type CompressConfig struct {
	FFmpeg            FFmpegConfig  `mapstructure:"ffmpeg"`
	WorkRoot          string        `mapstructure:"work_root"`
	MediaRoot         string        `mapstructure:"media_root"` // 未启用MinIO时本地源文件的根目录
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ProgressStep      int           `mapstructure:"progress_step"`
	MaxFileSize       int64         `mapstructure:"max_file_size"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions"`
	ThumbnailExts     []string      `mapstructure:"thumbnail_extensions"`
	MaxConcurrentJobs int           `mapstructure:"max_concurrent_jobs"`
	AdminUsers        []string      `mapstructure:"admin_users"`
	ShutdownGrace     time.Duration `mapstructure:"shutdown_grace"`
}

// FFmpegConfig FFmpeg相关配置
type FFmpegConfig struct {
	BinaryPath   string        `mapstructure:"binary_path"`
	KillGrace    time.Duration `mapstructure:"kill_grace"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	TailLines    int           `mapstructure:"tail_lines"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ServiceName     string        `mapstructure:"service_name"`
	ServiceID       string        `mapstructure:"service_id"`
	RegisterHost    string        `mapstructure:"register_host"`
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// EtcdConfig etcd客户端配置
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// ProfilingConfig pyroscope profiling.
type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
}

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCfg
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	// 设置环境变量前缀
	v.SetEnvPrefix("COMPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no file read.
// The CLI uses it for local runs.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.normalize()
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8083)
	v.SetDefault("server.mode", "release")
	v.SetDefault("grpc_server.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("kafka.client_id", "compress-service")
	v.SetDefault("kafka.group_id", "compress-service-group")
	v.SetDefault("kafka.topics.compress_requests", "compress.requests")
	v.SetDefault("kafka.topics.compress_events", "compress.events")
	v.SetDefault("kafka.commit_on_decode_error", true)
	v.SetDefault("compress.poll_interval", "3s")
	v.SetDefault("compress.progress_step", 2)
	v.SetDefault("compress.max_file_size", 2000*1024*1024)
	v.SetDefault("compress.allowed_extensions", []string{"mkv", "mp4", "webm", "avi", "mov", "flv", "wmv", "m4v", "3gp", "ts"})
	v.SetDefault("compress.thumbnail_extensions", []string{"mkv", "mp4", "webm", "avi", "mov", "flv", "wmv"})
	v.SetDefault("jwt.admin_role", "admin")
	v.SetDefault("service_registry.service_name", "compress-service")
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	// 兼容不同的密钥字段
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}
	if c.Minio.OutputPrefix == "" {
		c.Minio.OutputPrefix = "compressed"
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8083
	}
	if c.GRPCServer.Host == "" {
		c.GRPCServer.Host = "0.0.0.0"
	}
	if c.GRPCServer.Port == 0 {
		c.GRPCServer.Port = 9092
	}

	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "compress"
	}

	if c.Session.Backend == "" {
		c.Session.Backend = "memory"
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 30 * time.Minute
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = time.Minute
	}

	// FFmpeg默认值
	if strings.TrimSpace(c.Compress.FFmpeg.BinaryPath) == "" {
		c.Compress.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.Compress.FFmpeg.KillGrace <= 0 {
		c.Compress.FFmpeg.KillGrace = 5 * time.Second
	}
	if c.Compress.FFmpeg.ProbeTimeout <= 0 {
		c.Compress.FFmpeg.ProbeTimeout = 30 * time.Second
	}
	if c.Compress.FFmpeg.TailLines <= 0 {
		c.Compress.FFmpeg.TailLines = 50
	}
	if c.Compress.WorkRoot == "" {
		c.Compress.WorkRoot = "/tmp/compress"
	}
	if c.Compress.MediaRoot == "" {
		c.Compress.MediaRoot = "/tmp/compress-media"
	}
	if c.Compress.PollInterval <= 0 {
		c.Compress.PollInterval = 3 * time.Second
	}
	if c.Compress.ProgressStep <= 0 {
		c.Compress.ProgressStep = 2
	}
	if c.Compress.MaxConcurrentJobs < 0 {
		c.Compress.MaxConcurrentJobs = 0
	}
	if c.Compress.ShutdownGrace <= 0 {
		c.Compress.ShutdownGrace = 10 * time.Second
	}
	c.Compress.AllowedExtensions = normalizeExts(c.Compress.AllowedExtensions)
	c.Compress.ThumbnailExts = normalizeExts(c.Compress.ThumbnailExts)

	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = "compress-service"
	}
	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.ServiceRegistry.RefreshInterval == 0 {
		c.ServiceRegistry.RefreshInterval = 10 * time.Second
	}
	if c.Etcd.DialTimeout <= 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}

	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "compress-service"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "compress-service-group"
	}
	if c.Kafka.Topics.CompressRequests == "" {
		c.Kafka.Topics.CompressRequests = "compress.requests"
	}
	if c.Kafka.Topics.CompressEvents == "" {
		c.Kafka.Topics.CompressEvents = "compress.events"
	}
	if c.JWT.AdminRole == "" {
		c.JWT.AdminRole = "admin"
	}
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("session.backend=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if c.JWT.Enabled && c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required when jwt.enabled")
	}
	if c.ServiceRegistry.Enabled && len(c.Etcd.Endpoints) == 0 {
		return fmt.Errorf("service_registry.enabled requires etcd.endpoints")
	}
	return nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
