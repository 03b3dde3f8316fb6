package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultConfigFile 是未显式指定配置路径时尝试读取的文件，缺失时仅使用默认值与环境变量。
const DefaultConfigFile = "config.toml"

// envBindings 将配置键映射到环境变量，兼容 PaaS 平台注入的 PORT/GITHUB_TOKEN。
var envBindings = map[string][]string{
	"ListenAddress":   {"UPDATE_HUB_LISTEN_ADDRESS"},
	"ListenPort":      {"UPDATE_HUB_LISTEN_PORT", "PORT"},
	"ReleasesDir":     {"UPDATE_HUB_RELEASES_DIR"},
	"LogLevel":        {"UPDATE_HUB_LOG_LEVEL"},
	"LogFilePath":     {"UPDATE_HUB_LOG_FILE"},
	"LogMaxSize":      {"UPDATE_HUB_LOG_MAX_SIZE"},
	"LogMaxBackups":   {"UPDATE_HUB_LOG_MAX_BACKUPS"},
	"LogCompress":     {"UPDATE_HUB_LOG_COMPRESS"},
	"UpstreamTimeout": {"UPDATE_HUB_UPSTREAM_TIMEOUT"},
	"GitHub.Owner":    {"GITHUB_OWNER"},
	"GitHub.Repo":     {"GITHUB_REPO"},
	"GitHub.APIURL":   {"GITHUB_API_URL"},
	"GitHub.Token":    {"GITHUB_TOKEN"},
	"GitHub.CacheTTL": {"UPDATE_HUB_CACHE_TTL"},
}

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
// path 为空时尝试 DefaultConfigFile，文件不存在不视为错误。
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyGitHubDefaults(&cfg.GitHub)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(cfg.Global.ReleasesDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析发布目录: %w", err)
	}
	cfg.Global.ReleasesDir = absRoot

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenAddress", "0.0.0.0")
	v.SetDefault("ListenPort", 3001)
	v.SetDefault("ReleasesDir", "./releases")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("GitHub.APIURL", "https://api.github.com")
	v.SetDefault("GitHub.CacheTTL", "5m")
}

func bindEnv(v *viper.Viper) error {
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}
	return nil
}

func applyGlobalDefaults(g *GlobalConfig) {
	if strings.TrimSpace(g.ListenAddress) == "" {
		g.ListenAddress = "0.0.0.0"
	}
	if g.ListenPort == 0 {
		g.ListenPort = 3001
	}
	if strings.TrimSpace(g.LogLevel) == "" {
		g.LogLevel = "info"
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
}

func applyGitHubDefaults(g *GitHubConfig) {
	g.Owner = strings.TrimSpace(g.Owner)
	g.Repo = strings.TrimSpace(g.Repo)
	g.Token = strings.TrimSpace(g.Token)
	g.APIURL = strings.TrimRight(strings.TrimSpace(g.APIURL), "/")
	if g.APIURL == "" {
		g.APIURL = "https://api.github.com"
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(5 * time.Minute)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
