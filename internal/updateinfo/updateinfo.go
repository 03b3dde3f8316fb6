// Package updateinfo 解析 electron-builder 生成的 latest.yml，供状态接口与首页展示当前可更新版本。
// 元数据文件本身始终按原始字节下发，这里只做只读解析。
package updateinfo

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ErrNoVersion 表示 latest.yml 缺少 version 字段。
var ErrNoVersion = errors.New("latest.yml has no version")

// File 是 latest.yml 中 files 列表的一项。
type File struct {
	URL    string `yaml:"url" json:"url"`
	SHA512 string `yaml:"sha512" json:"sha512,omitempty"`
	Size   int64  `yaml:"size" json:"size,omitempty"`
}

// Info 对应 latest.yml 的顶层结构。
type Info struct {
	Version     string `yaml:"version" json:"version"`
	Path        string `yaml:"path" json:"path,omitempty"`
	SHA512      string `yaml:"sha512" json:"sha512,omitempty"`
	ReleaseDate string `yaml:"releaseDate" json:"releaseDate,omitempty"`
	Files       []File `yaml:"files" json:"files,omitempty"`
}

// Read 读取并解析 path 指向的 latest.yml。
func Read(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse 解析 latest.yml 内容，version 为空时返回 ErrNoVersion。
func Parse(data []byte) (*Info, error) {
	var info Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode latest.yml: %w", err)
	}
	info.Version = strings.TrimSpace(info.Version)
	if info.Version == "" {
		return nil, ErrNoVersion
	}
	return &info, nil
}

// SemVer 校验并返回语义化版本。
func (i *Info) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(i.Version)
	if err != nil {
		return nil, fmt.Errorf("latest.yml version %q: %w", i.Version, err)
	}
	return v, nil
}

// Artifacts 返回 latest.yml 引用的所有文件名，path 与 files[].url 去重后按出现顺序排列。
func (i *Info) Artifacts() []string {
	seen := make(map[string]struct{}, len(i.Files)+1)
	names := make([]string, 0, len(i.Files)+1)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	add(i.Path)
	for _, f := range i.Files {
		add(f.URL)
	}
	return names
}

// Summary 是状态接口中 latest 字段的结构。
type Summary struct {
	Version     string   `json:"version"`
	Valid       bool     `json:"valid"`
	Prerelease  bool     `json:"prerelease"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	Artifacts   []string `json:"artifacts"`
}

// Summarize 生成状态摘要；版本号不合法时 Valid 为 false 但仍返回原始字符串。
func (i *Info) Summarize() Summary {
	summary := Summary{
		Version:     i.Version,
		ReleaseDate: i.ReleaseDate,
		Artifacts:   i.Artifacts(),
	}
	if v, err := i.SemVer(); err == nil {
		summary.Valid = true
		summary.Prerelease = v.Prerelease() != ""
	}
	return summary
}
