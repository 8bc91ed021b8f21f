// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Line         LineConfig         `mapstructure:"line"`
	LLM          LLMConfig          `mapstructure:"llm"`
	News         NewsConfig         `mapstructure:"news"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Broadcast    BroadcastConfig    `mapstructure:"broadcast"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	MinIO        MinIOConfig        `mapstructure:"minio"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Admin        AdminConfig        `mapstructure:"admin"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LineConfig 存储 LINE Messaging API 的凭证与推送对象。
type LineConfig struct {
	ChannelAccessToken string        `mapstructure:"channel_access_token"`
	ChannelSecret      string        `mapstructure:"channel_secret"`
	APIBaseURL         string        `mapstructure:"api_base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	// UserIDs 以逗号分隔，便于通过环境变量覆盖
	UserIDs string `mapstructure:"user_ids"`
}

// Recipients 返回去重、去空白后的推送用户列表，保持配置中的顺序。
func (c LineConfig) Recipients() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range strings.Split(c.UserIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数。
// 浮点参数使用指针，显式配置的 0 与未配置可以区分。
type LLMGenerationConfig struct {
	Temperature      *float64 `mapstructure:"temperature"`
	TopP             *float64 `mapstructure:"top_p"`
	MaxTokens        int      `mapstructure:"max_tokens"`
	PresencePenalty  *float64 `mapstructure:"presence_penalty"`
	FrequencyPenalty *float64 `mapstructure:"frequency_penalty"`
}

// LLMPromptConfig 配置系统提示。
type LLMPromptConfig struct {
	System string `mapstructure:"system"`
	// LanguageHint 在用户消息包含非 ASCII 字符时追加到系统提示之后
	LanguageHint string `mapstructure:"language_hint"`
}

// NewsConfig 存储财经新闻源与每日推送时间。
type NewsConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Limit        int           `mapstructure:"limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ScheduleTime string        `mapstructure:"schedule_time"`
	Enabled      bool          `mapstructure:"enabled"`
}

// ConversationConfig 存储会话历史相关的配置。
type ConversationConfig struct {
	// MaxTurns 为 0 表示不截断
	MaxTurns int           `mapstructure:"max_turns"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// BroadcastConfig 控制广播的并发与单个接收者的超时。
type BroadcastConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。DSN 为空时不记录对话审计。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时会话保存在进程内存中。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时广播任务在进程内直接执行。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时不归档会话。
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	BucketName      string        `mapstructure:"bucket_name"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// AdminConfig 存储管理接口的登录凭证，密码为 bcrypt 哈希。
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

const defaultSystemPrompt = `You are a helpful assistant in a LINE chat.
You provide concise, accurate, and helpful responses.
You can engage in casual conversation while maintaining professionalism.
You should avoid any harmful, unethical, or inappropriate content.
You can also provide financial insights and analysis when asked.
You are capable of responding in multiple languages, including English, Chinese, Japanese, and others.
Always respond in the same language that the user used in their message.`

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("line.channel_access_token", "")
	v.SetDefault("line.channel_secret", "")
	v.SetDefault("line.api_base_url", "https://api.line.me")
	v.SetDefault("line.timeout", 10*time.Second)
	v.SetDefault("line.user_ids", "")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.generation.temperature", 0.7)
	v.SetDefault("llm.generation.top_p", 1.0)
	v.SetDefault("llm.generation.max_tokens", 500)
	v.SetDefault("llm.generation.presence_penalty", 0.0)
	v.SetDefault("llm.generation.frequency_penalty", 0.0)
	v.SetDefault("llm.prompt.system", defaultSystemPrompt)
	v.SetDefault("llm.prompt.language_hint", "Please respond in the same language as the user's message.")

	v.SetDefault("news.api_key", "")
	v.SetDefault("news.base_url", "https://financialmodelingprep.com")
	v.SetDefault("news.limit", 5)
	v.SetDefault("news.timeout", 10*time.Second)
	v.SetDefault("news.schedule_time", "08:00")
	v.SetDefault("news.enabled", true)

	// 10 轮问答，每轮 user + assistant 两条
	v.SetDefault("conversation.max_turns", 20)
	v.SetDefault("conversation.ttl", 7*24*time.Hour)

	v.SetDefault("broadcast.concurrency", 4)
	v.SetDefault("broadcast.timeout", 10*time.Second)

	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "line-broadcast")
	v.SetDefault("kafka.group_id", "line-gpt-go-broadcast")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "line-transcripts")
	v.SetDefault("minio.timeout", 10*time.Second)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 12)

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
}

// Load 从指定路径读取 YAML 文件，叠加 LINEGPT_ 前缀的环境变量后解析为 Config。
// 配置文件不存在时只使用默认值与环境变量。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LINEGPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !isNotExist(err) {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate 检查取值范围，避免启动后才发现配置错误。
func (c Config) Validate() error {
	if c.Conversation.MaxTurns < 0 {
		return fmt.Errorf("conversation.max_turns 不能为负数: %d", c.Conversation.MaxTurns)
	}
	if c.Broadcast.Concurrency <= 0 {
		return fmt.Errorf("broadcast.concurrency 必须大于 0: %d", c.Broadcast.Concurrency)
	}
	if c.News.Enabled {
		if _, err := time.Parse("15:04", c.News.ScheduleTime); err != nil {
			return fmt.Errorf("news.schedule_time 格式应为 HH:MM: %w", err)
		}
	}
	return nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
