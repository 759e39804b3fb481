// Package json 统一项目内的 JSON 编解码实现。
//
// 所有业务代码应通过本包而不是 encoding/json 进行编解码，
// 以便统一替换底层实现。
package json

import (
	jsoniter "github.com/json-iterator/go"
)

// 与 encoding/json 行为一致，但对象键大小写敏感：{"KIND":"ping"} 不会匹配 kind 字段。
var api = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	CaseSensitive:          true,
}.Froze()

// RawMessage 与 encoding/json.RawMessage 兼容。
type RawMessage = jsoniter.RawMessage

// Marshal 将 v 编码为 JSON。
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal 将 JSON 数据解码到 v。
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// MarshalToString 将 v 编码为 JSON 字符串。
func MarshalToString(v any) (string, error) {
	return api.MarshalToString(v)
}

// Valid 判断 data 是否为合法 JSON。
func Valid(data []byte) bool {
	return api.Valid(data)
}
