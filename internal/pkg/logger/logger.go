// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 配置全局 zerolog logger，所有服务在启动时调用一次。
func Init(serviceName, level string) {
	InitWithWriter(os.Stdout, serviceName, level)
}

// InitWithWriter 与 Init 相同，但允许指定输出（测试中写入 buffer）。
func InitWithWriter(w io.Writer, serviceName, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zlog.Logger = zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
}

// Ctx 返回与 ctx 关联的 logger。
// 如果 ctx 中没有 logger，则回退到全局 logger；如果 ctx 携带 trace，则自动附加 trace_id。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &zlog.Logger
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		withTrace := l.With().Str("trace_id", sc.TraceID().String()).Logger()
		return &withTrace
	}
	return l
}
