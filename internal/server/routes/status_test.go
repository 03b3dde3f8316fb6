package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/update-hub/internal/cache"
	"github.com/any-hub/update-hub/internal/directory"
	"github.com/any-hub/update-hub/internal/files"
	"github.com/any-hub/update-hub/internal/release"
)

type fakeDirectory struct {
	releases []release.Release
	err      error
	cached   *cache.Snapshot
}

func (f *fakeDirectory) FetchReleases(context.Context) ([]release.Release, error) {
	return f.releases, f.err
}

func (f *fakeDirectory) Cached() (cache.Snapshot, bool) {
	if f.cached == nil {
		return cache.Snapshot{}, false
	}
	return *f.cached, true
}

func (f *fakeDirectory) Repository() directory.Repository {
	return directory.Repository{Owner: "acme", Repo: "desktop-app", URL: "https://github.com/acme/desktop-app"}
}

func sampleReleases() []release.Release {
	count := int64(42)
	return []release.Release{
		{
			Tag:         "v1.2.0",
			PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Body:        "notes",
			Assets: []release.Asset{
				{Name: "App-Setup-1.2.0.exe", DownloadURL: "https://example.com/app.exe", Size: 73400320, DownloadCount: &count},
			},
		},
	}
}

func newStatusApp(t *testing.T, dir *fakeDirectory, root string) *fiber.App {
	t.Helper()
	app := fiber.New()
	RegisterStatusRoutes(app, StatusOptions{
		Directory: dir,
		Files:     files.NewServer(root, nil),
		Now:       func() time.Time { return time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC) },
	})
	return app
}

func getStatus(t *testing.T, app *fiber.App) map[string]any {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return payload
}

func TestStatusReportsReleases(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "latest.yml"), []byte("version: 1.2.0\npath: App-Setup-1.2.0.exe\n"), 0o644); err != nil {
		t.Fatalf("write latest.yml: %v", err)
	}
	app := newStatusApp(t, &fakeDirectory{releases: sampleReleases()}, root)

	payload := getStatus(t, app)
	if payload["status"] != "online" {
		t.Fatalf("unexpected status %v", payload["status"])
	}
	if payload["timestamp"] != "2024-04-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %v", payload["timestamp"])
	}
	if payload["error"] != nil {
		t.Fatalf("expected null error, got %v", payload["error"])
	}

	releases := payload["releases"].([]any)
	if len(releases) != 1 {
		t.Fatalf("expected 1 release, got %d", len(releases))
	}
	first := releases[0].(map[string]any)
	if first["name"] != "v1.2.0" {
		t.Fatalf("expected name to fall back to tag, got %v", first["name"])
	}
	asset := first["assets"].([]any)[0].(map[string]any)
	if asset["url"] != "https://example.com/app.exe" || asset["downloadCount"] != float64(42) {
		t.Fatalf("unexpected asset payload %v", asset)
	}

	latest := payload["latest"].(map[string]any)
	if latest["version"] != "1.2.0" || latest["valid"] != true {
		t.Fatalf("unexpected latest summary %v", latest)
	}
	repo := payload["directory"].(map[string]any)
	if repo["owner"] != "acme" || repo["repo"] != "desktop-app" {
		t.Fatalf("unexpected directory %v", repo)
	}
}

func TestStatusReportsDirectoryErrorWithStaleReleases(t *testing.T) {
	dir := &fakeDirectory{
		err: &directory.Error{
			Kind:        directory.KindRepositoryNotFound,
			Message:     "Not Found",
			Suggestions: []string{"check the repository"},
			Repository:  "acme/desktop-app",
			StatusCode:  404,
		},
		cached: &cache.Snapshot{Releases: sampleReleases(), FetchedAt: time.Now()},
	}
	app := newStatusApp(t, dir, t.TempDir())

	payload := getStatus(t, app)
	errPayload, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected structured error, got %v", payload["error"])
	}
	if errPayload["code"] != "REPO_NOT_FOUND" {
		t.Fatalf("unexpected error code %v", errPayload["code"])
	}
	if releases := payload["releases"].([]any); len(releases) != 1 {
		t.Fatalf("expected stale releases to be reported, got %d", len(releases))
	}
	if payload["latest"] != nil {
		t.Fatalf("expected null latest without latest.yml, got %v", payload["latest"])
	}
}

func TestStatusErrorWithoutCacheReportsEmptyList(t *testing.T) {
	dir := &fakeDirectory{err: &directory.Error{Kind: directory.KindAuthDenied, Message: "denied"}}
	app := newStatusApp(t, dir, t.TempDir())

	payload := getStatus(t, app)
	releases, ok := payload["releases"].([]any)
	if !ok || len(releases) != 0 {
		t.Fatalf("expected empty releases array, got %v", payload["releases"])
	}
}

func TestInfoPageRendersReleasesAndFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "App-Setup-1.1.0.exe"), []byte("binary"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	dir := &fakeDirectory{
		releases: sampleReleases(),
	}
	app := newStatusApp(t, dir, root)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{"App-Setup-1.2.0.exe", "v1.2.0", "2024-03-01", "73 MB", "42 downloads", "App-Setup-1.1.0.exe", "/api/status"} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}

func TestInfoPageShowsSuggestions(t *testing.T) {
	dir := &fakeDirectory{err: &directory.Error{
		Kind:        directory.KindAuthDenied,
		Message:     "Authentication failed or repository access denied",
		Suggestions: []string{"Verify the token has access to the repository"},
	}}
	app := newStatusApp(t, dir, t.TempDir())

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if !strings.Contains(page, "Error Fetching Releases") || !strings.Contains(page, "Verify the token has access to the repository") {
		t.Fatalf("expected error box with suggestions, got %s", page)
	}
	if !strings.Contains(page, "No releases available yet") {
		t.Fatalf("expected empty releases notice")
	}
}

func TestMetricsRouteExposesPrometheusFormat(t *testing.T) {
	app := newStatusApp(t, &fakeDirectory{}, t.TempDir())

	resp, err := app.Test(httptest.NewRequest("GET", "/-/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("expected default Go collectors in metrics output")
	}
}

func TestStatusRoutesAnswerHeadLikeGet(t *testing.T) {
	app := newStatusApp(t, &fakeDirectory{releases: sampleReleases()}, t.TempDir())

	for _, target := range []string{"/", "/api/status", "/-/metrics"} {
		getResp, err := app.Test(httptest.NewRequest("GET", target, nil))
		if err != nil {
			t.Fatalf("GET %s failed: %v", target, err)
		}
		headResp, err := app.Test(httptest.NewRequest("HEAD", target, nil))
		if err != nil {
			t.Fatalf("HEAD %s failed: %v", target, err)
		}
		if headResp.StatusCode != fiber.StatusOK || getResp.StatusCode != fiber.StatusOK {
			t.Fatalf("%s: expected 200 for GET and HEAD, got %d/%d", target, getResp.StatusCode, headResp.StatusCode)
		}
		if got, want := headResp.Header.Get("Content-Type"), getResp.Header.Get("Content-Type"); got != want {
			t.Fatalf("%s: HEAD content type %q, GET %q", target, got, want)
		}
		body, _ := io.ReadAll(headResp.Body)
		if len(body) != 0 {
			t.Fatalf("%s: HEAD should not carry a body, got %d bytes", target, len(body))
		}
	}
}
