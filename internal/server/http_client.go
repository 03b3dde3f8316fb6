package server

import (
	"net"
	"net/http"
	"time"

	"github.com/any-hub/update-hub/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

func upstreamTimeout(cfg *config.Config) time.Duration {
	if cfg != nil && cfg.Global.UpstreamTimeout.DurationValue() > 0 {
		return cfg.Global.UpstreamTimeout.DurationValue()
	}
	return 30 * time.Second
}

// NewUpstreamClient 返回访问 Releases API 的 http.Client，整个请求受 UpstreamTimeout 约束。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Timeout:   upstreamTimeout(cfg),
		Transport: defaultTransport.Clone(),
	}
}

// NewStreamingClient 返回下载附件使用的 http.Client：不设整体超时以免截断大文件，
// 只限制等待响应头的时间，并且不自动跟随重定向。
func NewStreamingClient(cfg *config.Config) *http.Client {
	transport := defaultTransport.Clone()
	transport.ResponseHeaderTimeout = upstreamTimeout(cfg)
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
