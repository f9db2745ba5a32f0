// Package log 提供 p2pnet 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，按组件划分 logger：
//
//	var logger = log.Logger("core/network")
//	logger.Info("监听地址已绑定", "addr", addr)
//
// 日志级别与格式可通过环境变量控制：
//
//	P2PNET_LOG_LEVEL   debug | info | warn | error（默认 info）
//	P2PNET_LOG_FORMAT  text | json（默认 text）
//
// 依赖注入框架（fx）的事件日志使用 zap，见 Zap。
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 环境变量名
const (
	EnvLevel  = "P2PNET_LOG_LEVEL"
	EnvFormat = "P2PNET_LOG_FORMAT"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// 当前级别，Zap() 构造的 logger 与之对齐
var level = new(slog.LevelVar)

// 是否使用 JSON 格式
var jsonFormat atomic.Bool

// SetDefault 设置默认 logger
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// Default 返回默认 logger
func Default() *slog.Logger {
	return slog.Default()
}

// New 创建新的文本 logger
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewJSON 创建 JSON 格式的 logger
func NewJSON(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetOutput 设置日志输出目标，保持当前级别
func SetOutput(w io.Writer) {
	install(w)
}

// SetOutputWithLevel 同时设置日志输出目标和级别
//
// 示例：
//
//	file, _ := os.OpenFile("node.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
//	log.SetOutputWithLevel(file, log.LevelDebug)
func SetOutputWithLevel(w io.Writer, l slog.Level) {
	level.Set(l)
	install(w)
}

// SetLevel 设置日志级别，立即对所有组件生效
func SetLevel(l slog.Level) {
	level.Set(l)
}

// GetLevel 返回当前日志级别
func GetLevel() slog.Level {
	return level.Level()
}

// SetJSON 切换 JSON 输出（输出到 stderr）
func SetJSON(enabled bool) {
	jsonFormat.Store(enabled)
	install(os.Stderr)
}

// Discard 丢弃所有日志输出，测试中使用
func Discard() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ParseLevel 解析级别字符串，无法识别时返回 LevelInfo 和 false
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

func install(w io.Writer) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if jsonFormat.Load() {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 slog.Default() 获取最新的 handler，
// 支持在运行时动态切换日志输出目标。
type LazyLogger struct {
	component string
}

func (l *LazyLogger) base() *slog.Logger {
	return slog.Default().With("component", l.component)
}

// Component 返回组件名
func (l *LazyLogger) Component() string {
	return l.component
}

// Enabled 判断指定级别是否会输出
func (l *LazyLogger) Enabled(lvl slog.Level) bool {
	return slog.Default().Enabled(context.Background(), lvl)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.base().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.base().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.base().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.base().Error(msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.base().DebugContext(ctx, msg, args...)
}

// InfoContext 带 context 的 Info 日志
func (l *LazyLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.base().InfoContext(ctx, msg, args...)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.base().WarnContext(ctx, msg, args...)
}

// ErrorContext 带 context 的 Error 日志
func (l *LazyLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.base().ErrorContext(ctx, msg, args...)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.base().With(args...)
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// ============================================================================
//                              zap 桥接
// ============================================================================

// Zap 构造与当前级别对齐的 zap logger
//
// 仅用于第三方库（fx 事件等）要求 *zap.Logger 的场景。
func Zap(component string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level.Level()))
	if !jsonFormat.Load() {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named(component)
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

// ============================================================================
//                              初始化
// ============================================================================

func init() {
	if lvl, ok := ParseLevel(os.Getenv(EnvLevel)); ok {
		level.Set(lvl)
	}
	jsonFormat.Store(strings.EqualFold(os.Getenv(EnvFormat), "json"))
	install(os.Stderr)
}
