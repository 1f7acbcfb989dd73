// Package config 通信服务的配置结构与加载
// 结构体经mapstructure标签与YAML映射，环境变量可覆盖任意配置项
package config

import (
	"time"

	"github.com/openimsdk/tools/db/redisutil"
)

// Config 服务配置根
type Config struct {
	API      API      `mapstructure:"api"`
	Redis    Redis    `mapstructure:"redis"`
	Postgres Postgres `mapstructure:"postgres"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Cache    Cache    `mapstructure:"cache"`
	Presence Presence `mapstructure:"presence"`
	Log      Log      `mapstructure:"log"`
}

// API HTTP服务配置
type API struct {
	ListenIP          string `mapstructure:"listenIP"`          // 监听地址
	Port              int    `mapstructure:"port"`              // 监听端口
	PrometheusEnabled bool   `mapstructure:"prometheusEnabled"` // 是否暴露/metrics
}

// Redis 缓存存储配置
type Redis struct {
	Address     []string `mapstructure:"address"`     // 服务器地址列表
	Username    string   `mapstructure:"username"`    // 用户名（Redis 6.0+）
	Password    string   `mapstructure:"password"`    // 密码
	ClusterMode bool     `mapstructure:"clusterMode"` // 是否集群模式
	DB          int      `mapstructure:"db"`          // 数据库编号（单机模式）
	MaxRetry    int      `mapstructure:"maxRetry"`    // 最大重试次数
	PoolSize    int      `mapstructure:"poolSize"`    // 连接池大小
}

func (r *Redis) Build() *redisutil.Config {
	return &redisutil.Config{
		ClusterMode: r.ClusterMode,
		Address:     r.Address,
		Username:    r.Username,
		Password:    r.Password,
		DB:          r.DB,
		MaxRetry:    r.MaxRetry,
		PoolSize:    r.PoolSize,
	}
}

// Postgres 持久层配置，唯一事实来源
type Postgres struct {
	DSN string `mapstructure:"dsn"` // 连接串
}

// Kafka 事件出口配置，地址为空时事件发射退化为no-op
type Kafka struct {
	Address    []string `mapstructure:"address"`    // 集群地址
	EventTopic string   `mapstructure:"eventTopic"` // 通信事件主题
}

// Cache 缓存层可调参数，零值使用各引擎内置默认
type Cache struct {
	TimelineLimit      int `mapstructure:"timelineLimit"`      // 会话时间线保留条数
	MetricsFlushSecond int `mapstructure:"metricsFlushSecond"` // 指标快照落盘间隔（秒）
}

// Presence 在线状态惰性降级阈值
type Presence struct {
	AwayAfterSecond    int `mapstructure:"awayAfterSecond"`    // online降级为away的秒数
	OfflineAfterSecond int `mapstructure:"offlineAfterSecond"` // 降级为offline的秒数
	TypingWindowSecond int `mapstructure:"typingWindowSecond"` // 输入中指示窗口（秒）
}

func (p *Presence) AwayAfter() time.Duration {
	return time.Duration(p.AwayAfterSecond) * time.Second
}

func (p *Presence) OfflineAfter() time.Duration {
	return time.Duration(p.OfflineAfterSecond) * time.Second
}

func (p *Presence) TypingWindow() time.Duration {
	return time.Duration(p.TypingWindowSecond) * time.Second
}

// Log 日志配置
type Log struct {
	StorageLocation     string `mapstructure:"storageLocation"`     // 日志目录，空则仅stdout
	RotationTime        uint   `mapstructure:"rotationTime"`        // 轮转周期（小时）
	RemainRotationCount uint   `mapstructure:"remainRotationCount"` // 保留文件数
	RemainLogLevel      int    `mapstructure:"remainLogLevel"`      // 日志级别
	IsStdout            bool   `mapstructure:"isStdout"`            // 是否输出到stdout
	IsJson              bool   `mapstructure:"isJson"`              // 是否JSON格式
	IsSimplify          bool   `mapstructure:"isSimplify"`          // 是否精简调用方信息
}
