// Package release 定义远端发布（Release）与其附件（Asset）的领域模型，
// 以及按文件名在发布列表中查找附件的匹配规则。
package release

import "time"

// Asset 是挂在某个 Release 下的单个可下载文件。Name 在同一 Release 内唯一，大小写按上游原样保存。
type Asset struct {
	Name          string `json:"name"`
	DownloadURL   string `json:"url"`
	Size          int64  `json:"size"`
	DownloadCount *int64 `json:"downloadCount,omitempty"`
}

// Release 是一个已发布的版本包，构造后不再修改。
type Release struct {
	Tag         string    `json:"tag"`
	Name        string    `json:"name"`
	Body        string    `json:"body,omitempty"`
	PublishedAt time.Time `json:"published"`
	Assets      []Asset   `json:"assets"`
}

// DisplayName 优先返回发布标题，缺省时退回 tag。
func (r Release) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Tag
}
