// Package directory 查询 GitHub Releases 目录，并在进程内缓存最近一次成功结果。
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/update-hub/internal/cache"
	"github.com/any-hub/update-hub/internal/logging"
	"github.com/any-hub/update-hub/internal/metrics"
	"github.com/any-hub/update-hub/internal/release"
	"github.com/any-hub/update-hub/internal/version"
)

const (
	defaultAPIURL   = "https://api.github.com"
	acceptHeader    = "application/vnd.github.v3+json"
	maxPayloadBytes = 32 << 20
	maxErrorBytes   = 64 << 10
	flightKey       = "releases"
)

// Repository 标识被查询的仓库。
type Repository struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	URL   string `json:"url"`
}

// FullName 返回 owner/repo 形式。
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Repo
}

// Options 汇总构造 Client 所需的依赖。
type Options struct {
	APIURL     string
	Owner      string
	Repo       string
	Token      string
	TTL        time.Duration
	HTTPClient *http.Client
	Cache      *cache.Store
	Logger     *logrus.Logger
}

// Client 并发安全；缓存未命中时同一时刻只会有一个上游请求在途。
type Client struct {
	apiURL string
	repo   Repository
	token  string
	ttl    time.Duration
	http   *http.Client
	cache  *cache.Store
	logger *logrus.Logger
	group  singleflight.Group
}

// New 根据 Options 构造 Client，缺省字段使用合理默认值。
func New(opts Options) *Client {
	apiURL := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	store := opts.Cache
	if store == nil {
		store = cache.NewStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		apiURL: apiURL,
		repo: Repository{
			Owner: opts.Owner,
			Repo:  opts.Repo,
			URL:   fmt.Sprintf("https://github.com/%s/%s", opts.Owner, opts.Repo),
		},
		token:  strings.TrimSpace(opts.Token),
		ttl:    opts.TTL,
		http:   httpClient,
		cache:  store,
		logger: logger,
	}
}

// Repository 返回当前配置的仓库信息。
func (c *Client) Repository() Repository {
	return c.repo
}

// Cached 返回最近一次成功拉取的快照（可能已过期），供状态页在上游失败时展示。
func (c *Client) Cached() (cache.Snapshot, bool) {
	return c.cache.Get()
}

// FetchReleases 返回按发布时间倒序排列的发布列表。
// 缓存有效时不产生网络请求；失败时缓存保持不变，错误总是 *Error。
func (c *Client) FetchReleases(ctx context.Context) ([]release.Release, error) {
	if snap, ok := c.cache.Fresh(c.ttl); ok {
		metrics.RecordDirectoryCacheHit()
		c.logger.WithFields(c.fields(true)).Debug("directory_cache_hit")
		return snap.Releases, nil
	}

	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, transportError(c.repo, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]release.Release), nil
	}
}

func (c *Client) refresh(ctx context.Context) ([]release.Release, error) {
	// 排队等待期间可能已有其他调用刷新了缓存。
	if snap, ok := c.cache.Fresh(c.ttl); ok {
		return snap.Releases, nil
	}

	started := time.Now()
	releases, err := c.fetch(ctx)
	elapsed := time.Since(started)

	fields := c.fields(false)
	fields["elapsed_ms"] = elapsed.Milliseconds()
	if err != nil {
		var dirErr *Error
		code := KindTransportError.Code()
		if errors.As(err, &dirErr) {
			code = dirErr.Kind.Code()
			fields["code"] = code
			if dirErr.StatusCode != 0 {
				fields["upstream_status"] = dirErr.StatusCode
			}
		}
		metrics.RecordDirectoryFetch(code, elapsed)
		c.logger.WithFields(fields).WithError(err).Warn("directory_fetch_failed")
		return nil, err
	}

	snap := c.cache.Put(releases)
	metrics.RecordDirectoryFetch("success", elapsed)
	fields["releases"] = len(snap.Releases)
	c.logger.WithFields(fields).Info("directory_fetch_success")
	return snap.Releases, nil
}

func (c *Client) fetch(ctx context.Context) ([]release.Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases", c.apiURL, c.repo.Owner, c.repo.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, transportError(c.repo, err)
	}
	req.Header.Set("User-Agent", "update-hub/"+version.Short())
	req.Header.Set("Accept", acceptHeader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(c.repo, err)
	}
	defer resp.Body.Close()

	switch status := resp.StatusCode; {
	case status >= 200 && status < 300:
		return decodeReleases(c.repo, resp.Body)
	case status == http.StatusNotFound:
		return nil, notFoundError(c.repo, upstreamMessage(resp.Body))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, authError(c.repo, status)
	default:
		return nil, upstreamError(c.repo, status, upstreamMessage(resp.Body))
	}
}

func (c *Client) fields(cacheHit bool) logrus.Fields {
	mode := "anonymous"
	if c.token != "" {
		mode = "credentialed"
	}
	fields := logging.DirectoryFields(c.repo.Owner, c.repo.Repo, mode, cacheHit)
	fields["action"] = "directory_fetch"
	return fields
}

// upstreamMessage 尝试读取 GitHub 错误体中的 message 字段，失败时返回空串。
func upstreamMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBytes)).Decode(&payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}

type apiAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
	DownloadCount      *int64 `json:"download_count"`
}

type apiRelease struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	PublishedAt *time.Time `json:"published_at"`
	Assets      []apiAsset `json:"assets"`
}

func decodeReleases(repo Repository, body io.Reader) ([]release.Release, error) {
	var payload []apiRelease
	if err := json.NewDecoder(io.LimitReader(body, maxPayloadBytes)).Decode(&payload); err != nil {
		return nil, malformedError(repo, err)
	}

	releases := make([]release.Release, 0, len(payload))
	for _, item := range payload {
		rel := release.Release{
			Tag:    item.TagName,
			Name:   item.Name,
			Body:   item.Body,
			Assets: make([]release.Asset, 0, len(item.Assets)),
		}
		if item.PublishedAt != nil {
			rel.PublishedAt = *item.PublishedAt
		}
		for _, asset := range item.Assets {
			rel.Assets = append(rel.Assets, release.Asset{
				Name:          asset.Name,
				DownloadURL:   asset.BrowserDownloadURL,
				Size:          asset.Size,
				DownloadCount: asset.DownloadCount,
			})
		}
		releases = append(releases, rel)
	}
	sortNewestFirst(releases)
	return releases, nil
}

// sortNewestFirst 按发布时间倒序稳定排序，无发布时间的条目保持原有相对顺序并排在最后。
func sortNewestFirst(releases []release.Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		a, b := releases[i].PublishedAt, releases[j].PublishedAt
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.After(b)
		}
	})
}
