package proxy

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/any-hub/update-hub/internal/files"
)

const requestIDKey = "_updatehub_request_id"

type localStub struct {
	outcome files.Outcome
	calls   int
}

func (l *localStub) Serve(c fiber.Ctx, _ string) (files.Outcome, error) {
	l.calls++
	switch l.outcome {
	case files.Hit:
		return files.Hit, c.SendString("local")
	case files.Forbidden:
		return files.Forbidden, c.Status(fiber.StatusForbidden).SendString("Forbidden")
	}
	return files.Miss, nil
}

type remoteStub struct {
	served bool
	calls  int
	panics bool
}

func (r *remoteStub) Serve(c fiber.Ctx, _ string) (bool, error) {
	r.calls++
	if r.panics {
		panic("boom")
	}
	if r.served {
		return true, c.SendString("remote")
	}
	return false, c.Status(fiber.StatusNotFound).SendString("File Not Found")
}

func newForwarderCtx(t *testing.T, requestID string) (fiber.Ctx, func()) {
	t.Helper()
	app := fiber.New()
	ctx := app.AcquireCtx(new(fasthttp.RequestCtx))
	ctx.Locals(requestIDKey, requestID)
	return ctx, func() {
		app.ReleaseCtx(ctx)
		_ = app.Shutdown()
	}
}

func TestForwarderServesLocalHitWithoutRemote(t *testing.T) {
	ctx, done := newForwarderCtx(t, "local-req")
	defer done()

	local := &localStub{outcome: files.Hit}
	remote := &remoteStub{served: true}
	forwarder := NewForwarder(local, remote, nil)

	if err := forwarder.Handle(ctx, "/app.exe"); err != nil {
		t.Fatalf("forwarder.Handle returned unexpected error: %v", err)
	}
	if body := string(ctx.Response().Body()); body != "local" {
		t.Fatalf("expected local body, got %q", body)
	}
	if remote.calls != 0 {
		t.Fatalf("remote must not be consulted on local hit")
	}
}

func TestForwarderStopsOnForbidden(t *testing.T) {
	ctx, done := newForwarderCtx(t, "forbidden-req")
	defer done()

	remote := &remoteStub{served: true}
	forwarder := NewForwarder(&localStub{outcome: files.Forbidden}, remote, nil)

	if err := forwarder.Handle(ctx, "/../secret"); err != nil {
		t.Fatalf("forwarder.Handle returned unexpected error: %v", err)
	}
	if status := ctx.Response().StatusCode(); status != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
	if remote.calls != 0 {
		t.Fatalf("remote must not be consulted after traversal rejection")
	}
}

func TestForwarderFallsBackOnMiss(t *testing.T) {
	ctx, done := newForwarderCtx(t, "miss-req")
	defer done()

	local := &localStub{outcome: files.Miss}
	remote := &remoteStub{served: true}
	forwarder := NewForwarder(local, remote, nil)

	if err := forwarder.Handle(ctx, "/app.exe"); err != nil {
		t.Fatalf("forwarder.Handle returned unexpected error: %v", err)
	}
	if body := string(ctx.Response().Body()); body != "remote" {
		t.Fatalf("expected remote body, got %q", body)
	}
	if local.calls != 1 || remote.calls != 1 {
		t.Fatalf("expected one call each, got local=%d remote=%d", local.calls, remote.calls)
	}
}

func TestForwarderWithoutRemoteReturnsNotFound(t *testing.T) {
	ctx, done := newForwarderCtx(t, "no-remote")
	defer done()

	forwarder := NewForwarder(&localStub{outcome: files.Miss}, nil, nil)
	if err := forwarder.Handle(ctx, "/dir/app.exe"); err != nil {
		t.Fatalf("forwarder.Handle returned unexpected error: %v", err)
	}
	if status := ctx.Response().StatusCode(); status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if body := string(ctx.Response().Body()); !strings.Contains(body, "File Not Found: app.exe") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestForwarderHandlerPanic(t *testing.T) {
	ctx, done := newForwarderCtx(t, "panic-req")
	defer done()

	logger := logrus.New()
	logBuf := &bytes.Buffer{}
	logger.SetOutput(logBuf)

	forwarder := NewForwarder(&localStub{outcome: files.Miss}, &remoteStub{panics: true}, logger)

	if err := forwarder.Handle(ctx, "/app.exe"); err != nil {
		t.Fatalf("forwarder.Handle returned unexpected error: %v", err)
	}
	if status := ctx.Response().StatusCode(); status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 for handler panic, got %d", status)
	}
	if body := string(ctx.Response().Body()); !strings.Contains(body, "download_handler_panic") {
		t.Fatalf("expected error body to mention download_handler_panic, got %s", body)
	}
	if !strings.Contains(logBuf.String(), "download_handler_panic") {
		t.Fatalf("expected log to mention download_handler_panic, got %s", logBuf.String())
	}
	if got := string(ctx.Response().Header.Peek("X-Request-ID")); got != "panic-req" {
		t.Fatalf("expected request id header panic-req, got %s", got)
	}
	if !strings.Contains(logBuf.String(), "panic-req") {
		t.Fatalf("expected log to include panic request id, got %s", logBuf.String())
	}
}
