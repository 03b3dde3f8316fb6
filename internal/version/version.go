package version

import "fmt"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version = "1.0.0"
	Commit  = "dev"
)

// Short 返回语义化版本号，供 /api/status 输出。
func Short() string {
	return Version
}

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("update-hub %s (%s)", Version, Commit)
}
