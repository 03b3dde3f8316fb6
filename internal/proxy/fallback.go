package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/update-hub/internal/files"
	"github.com/any-hub/update-hub/internal/logging"
	"github.com/any-hub/update-hub/internal/release"
	"github.com/any-hub/update-hub/internal/server"
	"github.com/any-hub/update-hub/internal/version"
)

// ReleaseSource 提供当前可用的发布列表，通常由 directory.Client 实现。
type ReleaseSource interface {
	FetchReleases(ctx context.Context) ([]release.Release, error)
}

var errAssetUnavailable = errors.New("asset unavailable upstream")

// Fallback 在本地缺失时按文件名查找远端附件并流式转发，最多跟随一次 302。
type Fallback struct {
	source ReleaseSource
	client *http.Client
	logger *logrus.Logger
}

// NewFallback 构造 Fallback。传入的 client 会被复制并禁用自动重定向，重定向由 Fallback 自行处理。
func NewFallback(source ReleaseSource, client *http.Client, logger *logrus.Logger) *Fallback {
	if client == nil {
		client = &http.Client{}
	}
	noFollow := *client
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Fallback{
		source: source,
		client: &noFollow,
		logger: logger,
	}
}

// Serve 返回是否已从上游转发了内容；未命中或上游失败时写出 404，错误只记录日志。
func (f *Fallback) Serve(c fiber.Ctx, requestPath string) (bool, error) {
	name := path.Base(requestPath)
	if name == "/" || name == "." {
		return false, notFound(c, name)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fields := logrus.Fields{"action": "proxy_fallback", "file": name}
	if requestID := server.RequestID(c); requestID != "" {
		fields["request_id"] = requestID
	}

	releases, err := f.source.FetchReleases(ctx)
	if err != nil {
		f.logger.WithFields(fields).WithError(err).Warn("release_lookup_failed")
		return false, notFound(c, name)
	}

	asset, rel, ok := release.FindAsset(releases, name)
	if !ok {
		fields["releases"] = len(releases)
		f.logger.WithFields(fields).Info("asset_not_found")
		return false, notFound(c, name)
	}
	fields["tag"] = rel.Tag
	fields["asset"] = asset.Name

	resp, err := f.download(ctx, asset.DownloadURL)
	if err != nil {
		f.logger.WithFields(fields).WithError(err).Warn("asset_download_failed")
		return false, notFound(c, name)
	}
	f.logger.WithFields(fields).WithField("upstream", resp.Request.URL.String()).Info("asset_proxied")

	c.Status(fiber.StatusOK)
	c.Set(fiber.HeaderContentType, "application/octet-stream")
	size := -1
	if resp.ContentLength >= 0 {
		size = int(resp.ContentLength)
	}

	if c.Method() == fiber.MethodHead {
		resp.Body.Close()
		if size >= 0 {
			c.Response().Header.SetContentLength(size)
		}
		return true, nil
	}

	// fasthttp 写完或客户端断开后负责关闭 resp.Body。
	return true, c.SendStream(resp.Body, size)
}

// download 请求附件地址；302 时只跟随一次，第二跳必须直接返回 200。
func (f *Fallback) download(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusFound:
		location, err := resp.Location()
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("redirect without location: %w", err)
		}
		next, err := f.get(ctx, location.String())
		if err != nil {
			return nil, err
		}
		if next.StatusCode != http.StatusOK {
			next.Body.Close()
			return nil, fmt.Errorf("%w: redirect target returned %d", errAssetUnavailable, next.StatusCode)
		}
		return next, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", errAssetUnavailable, resp.StatusCode)
	}
}

func (f *Fallback) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "update-hub/"+version.Short())
	req.Header.Set("Accept", "application/octet-stream")
	return f.client.Do(req)
}

func notFound(c fiber.Ctx, name string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusNotFound).SendString(files.NotFoundBody(name))
}
