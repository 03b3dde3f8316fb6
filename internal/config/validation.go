package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Validate 针对语义级别做进一步校验，汇总所有字段错误，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	var result *multierror.Error

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		result = multierror.Append(result, newFieldError("Global.ListenPort", "必须在 1-65535"))
	}
	if strings.TrimSpace(g.ReleasesDir) == "" {
		result = multierror.Append(result, newFieldError("Global.ReleasesDir", "不能为空"))
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		result = multierror.Append(result, newFieldError("Global.UpstreamTimeout", "必须大于 0"))
	}

	gh := c.GitHub
	if err := validateRepoSegment(gh.Owner); err != nil {
		result = multierror.Append(result, newFieldError("GitHub.Owner", err.Error()))
	}
	if err := validateRepoSegment(gh.Repo); err != nil {
		result = multierror.Append(result, newFieldError("GitHub.Repo", err.Error()))
	}
	if err := validateAPIURL(gh.APIURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("GitHub.APIURL: %w", err))
	}
	if gh.CacheTTL.DurationValue() <= 0 {
		result = multierror.Append(result, newFieldError("GitHub.CacheTTL", "必须大于 0"))
	}

	return result.ErrorOrNil()
}

func validateRepoSegment(value string) error {
	if value == "" {
		return errors.New("不能为空")
	}
	if strings.ContainsAny(value, "/ \t") {
		return errors.New("不允许包含斜杠或空白")
	}
	return nil
}

func validateAPIURL(raw string) error {
	if raw == "" {
		return errors.New("缺少 API 地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
