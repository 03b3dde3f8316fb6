package files

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteRange 是单段闭区间 [Start, End]，Total 为文件总长度。
type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

// Length 返回区间字节数。
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange 生成 `bytes s-e/n` 形式的响应头。
func (r ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// ParseRange 解析 `bytes=<start>-<end>`，end 可省略。
// 多段、后缀形式、非数字、start > end 或 start 超出文件时返回 false，调用方退回完整响应；
// end 超出文件末尾时截断到 size-1。
func ParseRange(header string, size int64) (ByteRange, bool) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || size <= 0 || strings.Contains(spec, ",") {
		return ByteRange{}, false
	}

	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok || startRaw == "" {
		return ByteRange{}, false
	}

	start, err := parseOffset(startRaw)
	if err != nil || start >= size {
		return ByteRange{}, false
	}

	end := size - 1
	if endRaw != "" {
		parsed, err := parseOffset(endRaw)
		if err != nil || parsed < start {
			return ByteRange{}, false
		}
		if parsed < end {
			end = parsed
		}
	}

	return ByteRange{Start: start, End: end, Total: size}, true
}

// parseOffset 只接受纯十进制数字，拒绝符号与空白。
func parseOffset(raw string) (int64, error) {
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid range offset %q", raw)
		}
	}
	return strconv.ParseInt(raw, 10, 64)
}
