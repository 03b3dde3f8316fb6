package routes

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/update-hub/internal/cache"
	"github.com/any-hub/update-hub/internal/directory"
	"github.com/any-hub/update-hub/internal/files"
	"github.com/any-hub/update-hub/internal/logging"
	"github.com/any-hub/update-hub/internal/metrics"
	"github.com/any-hub/update-hub/internal/release"
	"github.com/any-hub/update-hub/internal/server"
	"github.com/any-hub/update-hub/internal/updateinfo"
	"github.com/any-hub/update-hub/internal/version"
)

//go:embed templates/index.html.tmpl
var templateFS embed.FS

var indexTemplate = template.Must(
	template.New("index.html.tmpl").
		Funcs(sprig.FuncMap()).
		Funcs(template.FuncMap{
			"bytes": func(n int64) string {
				if n < 0 {
					n = 0
				}
				return humanize.Bytes(uint64(n))
			},
			"comma": func(v interface{}) string {
				switch n := v.(type) {
				case int64:
					return humanize.Comma(n)
				case *int64:
					if n == nil {
						return "0"
					}
					return humanize.Comma(*n)
				case int:
					return humanize.Comma(int64(n))
				}
				return ""
			},
			"ago": humanize.Time,
		}).
		ParseFS(templateFS, "templates/index.html.tmpl"),
)

// Directory 是状态页所需的 Releases 目录能力，由 directory.Client 实现。
type Directory interface {
	FetchReleases(ctx context.Context) ([]release.Release, error)
	Cached() (cache.Snapshot, bool)
	Repository() directory.Repository
}

// LocalFiles 列出发布目录内容，由 files.Server 实现。
type LocalFiles interface {
	Root() string
	List() ([]files.LocalFile, error)
}

// StatusOptions 汇总状态路由的依赖，Now 为空时使用 time.Now。
type StatusOptions struct {
	Directory Directory
	Files     LocalFiles
	Logger    *logrus.Logger
	Now       func() time.Time
}

// RegisterStatusRoutes 注册首页、/api/status 与 /-/metrics。
func RegisterStatusRoutes(app *fiber.App, opts StatusOptions) {
	if app == nil || opts.Directory == nil {
		return
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	readMethods := []string{fiber.MethodGet, fiber.MethodHead}

	app.Add(readMethods, server.PathStatus, func(c fiber.Ctx) error {
		payload, _ := collectStatus(requestContext(c), opts)
		return c.JSON(payload)
	})

	app.Add(readMethods, server.PathInfo, func(c fiber.Ctx) error {
		view, releases := collectStatus(requestContext(c), opts)
		page := infoPage{
			Version:   view.Version,
			Timestamp: view.Timestamp,
			Directory: view.Directory,
			Error:     view.Error,
			Latest:    view.Latest,
			Releases:  releases,
		}
		if opts.Files != nil {
			list, err := opts.Files.List()
			if err != nil {
				opts.Logger.WithError(err).WithField("action", "info_page").Warn("list releases dir failed")
			}
			page.Files = list
		}

		var buf bytes.Buffer
		if err := indexTemplate.Execute(&buf, page); err != nil {
			opts.Logger.WithError(err).WithField("action", "info_page").Error("render info page failed")
			return fiber.NewError(fiber.StatusInternalServerError, "render info page failed")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(buf.Bytes())
	})

	app.Add(readMethods, server.PathMetrics, adaptor.HTTPHandler(metrics.Handler()))
}

type statusPayload struct {
	Status    string               `json:"status"`
	Version   string               `json:"version"`
	Timestamp string               `json:"timestamp"`
	Releases  []releasePayload     `json:"releases"`
	Error     *directory.Error     `json:"error"`
	Directory directory.Repository `json:"directory"`
	Latest    *updateinfo.Summary  `json:"latest"`
}

type releasePayload struct {
	Tag       string          `json:"tag"`
	Name      string          `json:"name"`
	Published *time.Time      `json:"published"`
	Body      string          `json:"body"`
	Assets    []release.Asset `json:"assets"`
}

// infoPage 是首页模板的视图模型，直接使用领域模型以便调用 DisplayName 等方法。
type infoPage struct {
	Version   string
	Timestamp string
	Directory directory.Repository
	Error     *directory.Error
	Latest    *updateinfo.Summary
	Releases  []release.Release
	Files     []files.LocalFile
}

// collectStatus 拉取发布列表；失败时附带结构化错误，并回退到最近一次（可能过期的）缓存。
func collectStatus(ctx context.Context, opts StatusOptions) (statusPayload, []release.Release) {
	payload := statusPayload{
		Status:    "online",
		Version:   version.Short(),
		Timestamp: opts.Now().UTC().Format(time.RFC3339),
		Directory: opts.Directory.Repository(),
	}

	releases, err := opts.Directory.FetchReleases(ctx)
	if err != nil {
		payload.Error = asDirectoryError(err, payload.Directory)
		if snap, ok := opts.Directory.Cached(); ok {
			releases = snap.Releases
		}
	}
	payload.Releases = encodeReleases(releases)

	if opts.Files != nil {
		payload.Latest = readLatest(opts.Files.Root())
	}
	return payload, releases
}

func encodeReleases(releases []release.Release) []releasePayload {
	result := make([]releasePayload, 0, len(releases))
	for _, rel := range releases {
		item := releasePayload{
			Tag:    rel.Tag,
			Name:   rel.DisplayName(),
			Body:   rel.Body,
			Assets: rel.Assets,
		}
		if item.Assets == nil {
			item.Assets = []release.Asset{}
		}
		if !rel.PublishedAt.IsZero() {
			published := rel.PublishedAt
			item.Published = &published
		}
		result = append(result, item)
	}
	return result
}

func asDirectoryError(err error, repo directory.Repository) *directory.Error {
	var dirErr *directory.Error
	if errors.As(err, &dirErr) {
		return dirErr
	}
	return &directory.Error{
		Kind:       directory.KindTransportError,
		Message:    err.Error(),
		Repository: repo.FullName(),
		Err:        err,
	}
}

func readLatest(root string) *updateinfo.Summary {
	safe, err := files.Resolve(root, files.MetadataFile)
	if err != nil {
		return nil
	}
	info, err := updateinfo.Read(safe.Absolute())
	if err != nil {
		return nil
	}
	summary := info.Summarize()
	return &summary
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
