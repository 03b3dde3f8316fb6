package proxy

import (
	"fmt"
	"path"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/update-hub/internal/files"
	"github.com/any-hub/update-hub/internal/logging"
	"github.com/any-hub/update-hub/internal/metrics"
	"github.com/any-hub/update-hub/internal/server"
)

// LocalServer 在发布目录中查找文件，由 files.Server 实现。
type LocalServer interface {
	Serve(c fiber.Ctx, requestPath string) (files.Outcome, error)
}

// RemoteServer 在本地缺失时尝试从上游转发，由 Fallback 实现。
type RemoteServer interface {
	Serve(c fiber.Ctx, requestPath string) (bool, error)
}

// Forwarder 串联“本地目录 → 远端 Releases”两级下载管线，实现 server.DownloadHandler。
type Forwarder struct {
	local  LocalServer
	remote RemoteServer
	logger *logrus.Logger
}

// NewForwarder 创建 Forwarder，remote 为空时本地缺失直接返回 404。
func NewForwarder(local LocalServer, remote RemoteServer, logger *logrus.Logger) *Forwarder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Forwarder{
		local:  local,
		remote: remote,
		logger: logger,
	}
}

// Handle 依次执行本地查找与远端回退，任何一步 panic 都会被转换为 500 JSON。
func (f *Forwarder) Handle(c fiber.Ctx, requestPath string) (err error) {
	requestID := server.RequestID(c)
	started := time.Now()
	source := metrics.SourceNone

	defer func() {
		if r := recover(); r != nil {
			err = f.respondHandlerPanic(c, requestPath, r, requestID)
			source = metrics.SourceNone
		}
		metrics.RecordDownload(source)
		fields := logging.RequestFields(requestID, c.Method(), requestPath, source)
		fields["action"] = "download"
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		f.logger.WithFields(fields).Debug("download_pipeline_done")
	}()

	source, err = f.serve(c, requestPath)
	return err
}

func (f *Forwarder) serve(c fiber.Ctx, requestPath string) (string, error) {
	if f.local != nil {
		outcome, err := f.local.Serve(c, requestPath)
		switch outcome {
		case files.Hit:
			return metrics.SourceLocal, err
		case files.Forbidden:
			return metrics.SourceNone, err
		}
		if err != nil {
			return metrics.SourceNone, err
		}
	}

	if f.remote == nil {
		return metrics.SourceNone, notFound(c, path.Base(requestPath))
	}
	served, err := f.remote.Serve(c, requestPath)
	if served {
		return metrics.SourceRemote, err
	}
	return metrics.SourceNone, err
}

func (f *Forwarder) respondHandlerPanic(c fiber.Ctx, requestPath string, recovered interface{}, requestID string) error {
	fields := logging.RequestFields(requestID, c.Method(), requestPath, metrics.SourceNone)
	fields["action"] = "download"
	fields["error"] = "download_handler_panic"
	f.logger.WithFields(fields).Error(fmt.Errorf("panic: %v", recovered).Error())

	c.Response().ResetBody()
	c.Response().Header.Del(fiber.HeaderContentRange)
	setRequestIDHeader(c, requestID)
	return c.Status(fiber.StatusInternalServerError).
		JSON(fiber.Map{"error": "download_handler_panic"})
}

func setRequestIDHeader(c fiber.Ctx, requestID string) {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}
