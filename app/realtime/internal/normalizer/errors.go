package normalizer

import "errors"

var (
	// ErrMalformedMessage 非法 JSON 或不符合频道 schema
	ErrMalformedMessage = errors.New("normalizer: malformed message")

	// ErrUnknownChannel 未注册的频道
	ErrUnknownChannel = errors.New("normalizer: unknown channel")
)
