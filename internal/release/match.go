package release

import (
	"net/url"
	"strings"
)

// matchStrategy 判断附件名是否与请求文件名一致。
type matchStrategy func(assetName, want string) bool

// strategies 按优先级排列：精确匹配、忽略大小写、百分号解码后匹配。
var strategies = []matchStrategy{
	func(assetName, want string) bool { return assetName == want },
	strings.EqualFold,
	func(assetName, want string) bool {
		decoded, err := url.PathUnescape(assetName)
		return err == nil && decoded == want
	},
}

// FindAsset 按给定顺序扫描发布列表，返回第一个名称命中的附件及其所属发布。
// 单个发布内依次尝试各匹配策略，命中即停止，不再查看后续发布。
func FindAsset(releases []Release, name string) (Asset, Release, bool) {
	if name == "" {
		return Asset{}, Release{}, false
	}
	for _, rel := range releases {
		if asset, ok := rel.findAsset(name); ok {
			return asset, rel, true
		}
	}
	return Asset{}, Release{}, false
}

func (r Release) findAsset(name string) (Asset, bool) {
	for _, asset := range r.Assets {
		for _, match := range strategies {
			if match(asset.Name, name) {
				return asset, true
			}
		}
	}
	return Asset{}, false
}
