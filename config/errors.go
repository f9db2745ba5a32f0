package config

import "errors"

// 配置错误
var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("config is nil")

	// ErrEmptyAddress 空地址
	ErrEmptyAddress = errors.New("empty address")

	// ErrInvalidValue 字段取值无效
	ErrInvalidValue = errors.New("invalid value")
)
