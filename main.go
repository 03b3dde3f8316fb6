package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/update-hub/internal/cache"
	"github.com/any-hub/update-hub/internal/config"
	"github.com/any-hub/update-hub/internal/directory"
	"github.com/any-hub/update-hub/internal/files"
	"github.com/any-hub/update-hub/internal/logging"
	"github.com/any-hub/update-hub/internal/proxy"
	"github.com/any-hub/update-hub/internal/server"
	"github.com/any-hub/update-hub/internal/server/routes"
	"github.com/any-hub/update-hub/internal/version"
)

// configEnv 在未传入 --config 时提供配置文件路径。
const configEnv = "UPDATE_HUB_CONFIG"

const shutdownTimeout = 10 * time.Second

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	cmd := newRootCommand()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
}

// newRootCommand 构建 update-hub 根命令，RunE 中的退出码通过 os.Exit 透传。
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "update-hub",
		Short:         "Serve application update artifacts from disk or GitHub Releases",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := optionsFromFlags(cmd)
			if err != nil {
				return err
			}
			if code := run(opts); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	registerFlags(cmd)
	return cmd
}

func registerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("config", "c", "", fmt.Sprintf("配置文件路径（默认 ./%s，可被 %s 覆盖）", config.DefaultConfigFile, configEnv))
	flags.Bool("check-config", false, "仅校验配置后退出")
	flags.Bool("version", false, "显示版本信息")
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	if err := cmd.ParseFlags(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	return optionsFromFlags(cmd)
}

func optionsFromFlags(cmd *cobra.Command) (cliOptions, error) {
	flags := cmd.Flags()
	configFlag, err := flags.GetString("config")
	if err != nil {
		return cliOptions{}, err
	}
	checkOnly, err := flags.GetBool("check-config")
	if err != nil {
		return cliOptions{}, err
	}
	showVer, err := flags.GetBool("version")
	if err != nil {
		return cliOptions{}, err
	}

	path := os.Getenv(configEnv)
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.DefaultConfigFile
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", configPath)
		fields["repository"] = cfg.GitHub.Owner + "/" + cfg.GitHub.Repo
		fields["auth_mode"] = cfg.GitHub.AuthMode()
		fields["releases_dir"] = cfg.Global.ReleasesDir
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	if err := os.MkdirAll(cfg.Global.ReleasesDir, 0o755); err != nil {
		logger.WithError(err).WithField("releases_dir", cfg.Global.ReleasesDir).Warn("创建发布目录失败")
	}

	fields := logging.BaseFields("startup", configPath)
	fields["listen"] = cfg.ListenAddr()
	fields["releases_dir"] = cfg.Global.ReleasesDir
	fields["repository"] = cfg.GitHub.RepositoryURL()
	fields["auth_mode"] = cfg.GitHub.AuthMode()
	fields["cache_ttl"] = cfg.GitHub.CacheTTL.DurationValue().String()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := startHTTPServer(ctx, cfg, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildApp 按“配置 → 发布缓存/目录客户端 → 本地文件与远端回退 → Fiber 路由”的顺序装配应用，
// 所有请求共享同一份缓存与 http.Client。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, error) {
	releases := directory.New(directory.Options{
		APIURL:     cfg.GitHub.APIURL,
		Owner:      cfg.GitHub.Owner,
		Repo:       cfg.GitHub.Repo,
		Token:      cfg.GitHub.Token,
		TTL:        cfg.GitHub.CacheTTL.DurationValue(),
		HTTPClient: server.NewUpstreamClient(cfg),
		Cache:      cache.NewStore(),
		Logger:     logger,
	})
	local := files.NewServer(cfg.Global.ReleasesDir, logger)
	fallback := proxy.NewFallback(releases, server.NewStreamingClient(cfg), logger)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Metadata:   local,
		Downloads:  proxy.NewForwarder(local, fallback, logger),
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterStatusRoutes(app, routes.StatusOptions{
		Directory: releases,
		Files:     local,
		Logger:    logger,
	})
	return app, nil
}

func startHTTPServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	app, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.WithField("action", "shutdown").Info("收到退出信号，停止接收新请求")
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.WithError(err).WithField("action", "shutdown").Warn("优雅退出超时")
		}
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"addr":   cfg.ListenAddr(),
	}).Info("Fiber 服务启动")

	return app.Listen(cfg.ListenAddr(), fiber.ListenConfig{DisableStartupMessage: true})
}
