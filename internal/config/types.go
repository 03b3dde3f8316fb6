package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述监听、日志与本地发布目录等进程级参数。
type GlobalConfig struct {
	ListenAddress   string   `mapstructure:"ListenAddress"`
	ListenPort      int      `mapstructure:"ListenPort"`
	ReleasesDir     string   `mapstructure:"ReleasesDir"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// GitHubConfig 决定从哪个仓库的 Releases 列表中查找远端制品。
type GitHubConfig struct {
	Owner    string   `mapstructure:"Owner"`
	Repo     string   `mapstructure:"Repo"`
	APIURL   string   `mapstructure:"APIURL"`
	Token    string   `mapstructure:"Token"`
	CacheTTL Duration `mapstructure:"CacheTTL"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	GitHub GitHubConfig `mapstructure:"GitHub"`
}

// HasToken 表示是否配置了访问私有仓库的凭证。
func (g GitHubConfig) HasToken() bool {
	return strings.TrimSpace(g.Token) != ""
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (g GitHubConfig) AuthMode() string {
	if g.HasToken() {
		return "credentialed"
	}
	return "anonymous"
}

// RepositoryURL 返回仓库的网页地址，用于状态页与错误提示。
func (g GitHubConfig) RepositoryURL() string {
	return fmt.Sprintf("https://github.com/%s/%s", g.Owner, g.Repo)
}

// ListenAddr 拼接 Fiber Listen 使用的 host:port。
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Global.ListenAddress, c.Global.ListenPort)
}
