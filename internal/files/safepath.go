package files

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// ErrPathTraversal 表示请求路径规范化后落在发布目录之外。
var ErrPathTraversal = errors.New("path escapes releases directory")

// SafePath 是已通过越界校验的文件路径，只能由 Resolve 构造。
type SafePath struct {
	requested string
	absolute  string
	root      string
}

// Requested 返回调用方传入的原始相对路径。
func (p SafePath) Requested() string { return p.requested }

// Absolute 返回最终用于文件系统访问的绝对路径。
func (p SafePath) Absolute() string { return p.absolute }

// Root 返回发布目录的绝对路径。
func (p SafePath) Root() string { return p.root }

// Resolve 先做与符号链接无关的词法规范化（折叠 `..` 与重复分隔符），
// 结果不是 root 本身或其子路径时返回 ErrPathTraversal；通过后再用 securejoin
// 生成最终路径，保证目录内的符号链接也无法指向 root 之外。
func Resolve(root, requested string) (SafePath, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return SafePath{}, fmt.Errorf("resolve releases dir: %w", err)
	}

	joined := filepath.Join(absRoot, filepath.FromSlash(requested))
	rel, err := filepath.Rel(absRoot, joined)
	if err != nil {
		return SafePath{}, ErrPathTraversal
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return SafePath{}, ErrPathTraversal
	}

	final, err := securejoin.SecureJoin(absRoot, rel)
	if err != nil {
		return SafePath{}, fmt.Errorf("secure join %q: %w", requested, err)
	}

	return SafePath{
		requested: requested,
		absolute:  final,
		root:      absRoot,
	}, nil
}
