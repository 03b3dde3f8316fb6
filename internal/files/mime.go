package files

import (
	"path/filepath"
	"strings"
)

const defaultContentType = "application/octet-stream"

// contentTypes 固定的扩展名映射，未列出的类型一律按二进制下发。
var contentTypes = map[string]string{
	".exe":      "application/octet-stream",
	".blockmap": "application/octet-stream",
	".yml":      "text/yaml",
	".yaml":     "text/yaml",
	".json":     "application/json",
	".zip":      "application/zip",
	".html":     "text/html",
}

// ContentType 根据扩展名（忽略大小写）返回 Content-Type。
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return defaultContentType
}
