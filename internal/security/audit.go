// 文件路径: internal/security/audit.go
// 模块说明: 安全审计事件（CORS 拒绝、限流命中）写入 slog。
package security

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// 审计事件类型。
const (
	EventCORSRejected = "cors_rejected"
	EventRateLimited  = "rate_limited"
)

// Event 表示一次安全相关的拒绝。
type Event struct {
	Kind      string
	IP        string
	UserAgent string
	Metadata  map[string]any
	Occurred  time.Time
}

// Recorder 记录安全事件，供后续分析。
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// LoggerRecorder 将审计事件写入 slog.Logger。
type LoggerRecorder struct {
	logger *slog.Logger
}

// NewLoggerRecorder 返回记录器，写入指定 logger（为空时丢弃）。
func NewLoggerRecorder(logger *slog.Logger) *LoggerRecorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LoggerRecorder{logger: logger.With("component", "audit")}
}

// Record 实现 Recorder 并记录审计事件。
func (r *LoggerRecorder) Record(ctx context.Context, event Event) {
	if r == nil || r.logger == nil {
		return
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	r.logger.InfoContext(ctx, "audit event",
		"kind", event.Kind,
		"ip", event.IP,
		"ua", event.UserAgent,
		"metadata", event.Metadata,
		"occurred", event.Occurred.Format(time.RFC3339Nano),
	)
}
