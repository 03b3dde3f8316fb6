package server

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/update-hub/internal/metrics"
)

// DownloadHandler 处理普通下载路径（本地目录 → 远端回退），测试中可替换为假实现。
type DownloadHandler interface {
	Handle(c fiber.Ctx, requestPath string) error
}

// DownloadHandlerFunc adapts a function to the DownloadHandler interface.
type DownloadHandlerFunc func(fiber.Ctx, string) error

// Handle makes DownloadHandlerFunc satisfy DownloadHandler.
func (f DownloadHandlerFunc) Handle(c fiber.Ctx, requestPath string) error {
	return f(c, requestPath)
}

// MetadataHandler 下发 latest.yml，由 files.Server 实现。
type MetadataHandler interface {
	ServeMetadata(c fiber.Ctx) error
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Metadata   MetadataHandler
	Downloads  DownloadHandler
	ListenPort int
}

const (
	contextKeyRequestID = "_updatehub_request_id"
	contextKeyPath      = "_updatehub_path"
)

// 由 routes 子包注册的保留路径，总路由直接交给后续处理器。
const (
	PathInfo    = "/"
	PathStatus  = "/api/status"
	PathMetrics = "/-/metrics"
)

// NewApp builds a Fiber application with CORS, method gating, access logging
// and the download route table.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Metadata == nil {
		return nil, errors.New("metadata handler is required")
	}
	if opts.Downloads == nil {
		return nil, errors.New("download handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		StrictRouting: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	app.All("/*", func(c fiber.Ctx) error {
		requestPath := DecodedPath(c)
		switch requestPath {
		case PathInfo, PathStatus, PathMetrics:
			return c.Next()
		case "/latest.yml", "/latest.yaml":
			return opts.Metadata.ServeMetadata(c)
		}
		return opts.Downloads.Handle(c, requestPath)
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID、解码路径、写入 CORS 头并拦截非 GET/HEAD 方法，
// 处理结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		c.Locals(contextKeyPath, decodePath(c))

		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, "GET, HEAD, OPTIONS")
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type")

		var err error
		switch c.Method() {
		case fiber.MethodOptions:
			c.Status(fiber.StatusNoContent)
		case fiber.MethodGet, fiber.MethodHead:
			err = c.Next()
		default:
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			err = c.Status(fiber.StatusMethodNotAllowed).SendString("Method Not Allowed")
		}

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		elapsed := time.Since(started)
		metrics.RecordHTTPRequest(c.Method(), status, elapsed)
		logger.WithFields(logrus.Fields{
			"action":     "access",
			"request_id": reqID,
			"method":     c.Method(),
			"path":       DecodedPath(c),
			"status":     status,
			"elapsed_ms": elapsed.Milliseconds(),
			"user_agent": c.Get(fiber.HeaderUserAgent),
		}).Info("request")
		return err
	}
}

// decodePath 对原始请求路径做一次百分号解码，无法解码时退回原始路径。
func decodePath(c fiber.Ctx) string {
	raw := string(c.Request().URI().PathOriginal())
	if raw == "" {
		return c.Path()
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// DecodedPath returns the request path decoded once by the router middleware.
func DecodedPath(c fiber.Ctx) string {
	if value := c.Locals(contextKeyPath); value != nil {
		if p, ok := value.(string); ok {
			return p
		}
	}
	return c.Path()
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
