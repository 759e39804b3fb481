package serializer

import (
	"github.com/bytedance/sonic"
)

// SonicSerializer 使用 bytedance/sonic 实现 JSON 编解码，适合高频小消息。
type SonicSerializer struct{}

var _ Serializer = (*SonicSerializer)(nil)

// 在 sonic.ConfigStd 的基础上启用键大小写敏感，与 JSONSerializer 保持一致。
var sonicAPI = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	CaseSensitive:    true,
}.Froze()

func (SonicSerializer) Marshal(v any) ([]byte, error) {
	return sonicAPI.Marshal(v)
}

func (SonicSerializer) Unmarshal(data []byte, v any) error {
	return sonicAPI.Unmarshal(data, v)
}
