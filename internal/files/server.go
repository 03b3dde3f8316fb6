package files

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/update-hub/internal/logging"
	"github.com/any-hub/update-hub/internal/metrics"
)

// MetadataFile 是自动更新客户端轮询的版本描述文件。
const MetadataFile = "latest.yml"

const uploadHint = "Please ensure the file is uploaded to the releases directory on the server."

// Outcome 表示一次本地查找的结果。
type Outcome int

const (
	// Miss 文件不存在或不是普通文件，未写入任何响应。
	Miss Outcome = iota
	// Hit 已写出 200/206 响应。
	Hit
	// Forbidden 路径越界，已写出 403。
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Forbidden:
		return "forbidden"
	default:
		return "miss"
	}
}

// LocalFile 描述发布目录中的一个可下载文件。
type LocalFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Server 只读访问发布目录，可并发使用。
type Server struct {
	root   string
	logger *logrus.Logger
	open   func(name string) (io.ReadSeekCloser, error)
}

func openFile(name string) (io.ReadSeekCloser, error) {
	return os.Open(name)
}

// NewServer 以 root 为发布目录构造 Server。
func NewServer(root string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Server{root: root, logger: logger, open: openFile}
}

// Root 返回发布目录的绝对路径。
func (s *Server) Root() string {
	return s.root
}

// RelativePath 去掉开头的单个 `/` 与可选的 `releases/` 前缀。
func RelativePath(requestPath string) string {
	rel := strings.TrimPrefix(requestPath, "/")
	if trimmed, ok := strings.CutPrefix(rel, "releases/"); ok {
		rel = trimmed
	}
	return rel
}

// Serve 在发布目录中查找 requestPath。命中时写出完整或分段响应；
// 越界时写出 403；不存在时不写响应，由调用方决定是否回源。
func (s *Server) Serve(c fiber.Ctx, requestPath string) (Outcome, error) {
	rel := RelativePath(requestPath)
	safe, err := Resolve(s.root, rel)
	if err != nil {
		if errors.Is(err, ErrPathTraversal) {
			return Forbidden, s.forbid(c, requestPath)
		}
		s.logger.WithError(err).WithField("path", requestPath).Warn("local_resolve_failed")
		return Miss, nil
	}

	info, err := os.Stat(safe.Absolute())
	if err != nil || !info.Mode().IsRegular() {
		return Miss, nil
	}

	size := info.Size()
	c.Set(fiber.HeaderContentType, ContentType(safe.Absolute()))
	c.Set(fiber.HeaderAcceptRanges, "bytes")

	span, partial := ParseRange(c.Get(fiber.HeaderRange), size)
	offset, length := int64(0), size
	status := fiber.StatusOK
	if partial {
		offset, length = span.Start, span.Length()
		status = fiber.StatusPartialContent
		c.Set(fiber.HeaderContentRange, span.ContentRange())
	}
	c.Status(status)

	if c.Method() == fiber.MethodHead {
		c.Response().Header.SetContentLength(int(length))
		return Hit, nil
	}

	file, err := s.open(safe.Absolute())
	if err != nil {
		s.logger.WithError(err).WithField("path", safe.Absolute()).Warn("local_open_failed")
		c.Status(fiber.StatusOK)
		resetRangeHeaders(c)
		c.Response().Header.Del(fiber.HeaderContentType)
		return Miss, nil
	}
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			resetRangeHeaders(c)
			return Hit, err
		}
	}

	return Hit, c.SendStream(&sectionReader{Reader: io.LimitReader(file, length), file: file}, int(length))
}

// ServeMetadata 读取并下发 latest.yml，禁用缓存且不支持 Range；文件缺失时返回 404，绝不回源。
func (s *Server) ServeMetadata(c fiber.Ctx) error {
	safe, err := Resolve(s.root, MetadataFile)
	if err != nil {
		return s.forbid(c, "/"+MetadataFile)
	}

	info, err := os.Stat(safe.Absolute())
	if err != nil || !info.Mode().IsRegular() {
		fields := logrus.Fields{
			"action":      "metadata_missing",
			"path":        safe.Absolute(),
			"root_exists": dirExists(s.root),
		}
		if names, listErr := s.names(); listErr == nil {
			fields["files"] = strings.Join(names, ", ")
		}
		s.logger.WithFields(fields).Error("latest.yml not found")
		return c.Status(fiber.StatusNotFound).SendString("latest.yml not found")
	}

	data, err := os.ReadFile(safe.Absolute())
	if err != nil {
		s.logger.WithError(err).WithField("action", "metadata_read").Error("read latest.yml failed")
		return c.Status(fiber.StatusInternalServerError).SendString("Error reading latest.yml")
	}

	c.Set(fiber.HeaderContentType, ContentType(MetadataFile))
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	return c.Status(fiber.StatusOK).Send(data)
}

// List 返回发布目录中扩展名为 .exe/.yml/.yaml/.blockmap 的普通文件，按名称排序。
func (s *Server) List() ([]LocalFile, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	files := make([]LocalFile, 0, len(entries))
	for _, entry := range entries {
		if !listable(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, LocalFile{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// NotFoundBody 生成下载 404 的正文。
func NotFoundBody(name string) string {
	return "File Not Found: " + name + "\n\n" + uploadHint
}

func (s *Server) forbid(c fiber.Ctx, requestPath string) error {
	metrics.RecordPathTraversal()
	s.logger.WithFields(logrus.Fields{
		"action": "path_traversal",
		"path":   requestPath,
		"root":   s.root,
	}).Warn("security violation: path outside releases directory")
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusForbidden).SendString("Forbidden")
}

func (s *Server) names() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

func listable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".exe", ".yml", ".yaml", ".blockmap":
		return true
	}
	return false
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// sectionReader 让 fasthttp 在写完或客户端断开后关闭文件句柄。
type sectionReader struct {
	io.Reader
	file io.Closer
}

// resetRangeHeaders 删除已写入的 Content-Range 与 Accept-Ranges。
func resetRangeHeaders(c fiber.Ctx) {
	c.Response().Header.Del(fiber.HeaderContentRange)
	c.Response().Header.Del(fiber.HeaderAcceptRanges)
}

func (r *sectionReader) Close() error {
	return r.file.Close()
}
