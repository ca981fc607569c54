package log

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type reqIDKey struct{}

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Init installs the process logger. "production" writes one JSON object per
// line; anything else gets the human-readable console encoder. A nil w means
// stdout.
func Init(env string, w io.Writer) *zap.Logger {
	if w == nil {
		w = os.Stdout
	}

	var (
		enc   zapcore.Encoder
		level zapcore.Level
	)
	if env == "production" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.MessageKey = "msg"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
		level = zapcore.InfoLevel
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
		level = zapcore.DebugLevel
	}

	l := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level), zap.AddCaller(), zap.AddCallerSkip(2))

	mu.Lock()
	logger = l
	mu.Unlock()
	return l
}

// L returns the current process logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Sync() { _ = L().Sync() }

func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, reqIDKey{}, rid)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	rid, _ := ctx.Value(reqIDKey{}).(string)
	return rid
}

// Middleware copies the id set by fiber's requestid middleware into the
// request's user context so services can log it without touching fiber.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(WithRequestID(c.UserContext(), rid))
		}
		return c.Next()
	}
}

func write(ctx context.Context, level zapcore.Level, kind, action string, err error, fields map[string]any) {
	zf := make([]zap.Field, 0, 5)
	zf = append(zf, zap.String("action", action), zap.String("kind", kind))
	if rid := RequestID(ctx); rid != "" {
		zf = append(zf, zap.String("req_id", rid))
	}
	if err != nil {
		zf = append(zf, zap.String("err", err.Error()))
	}
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", fields))
	}
	if ce := L().Check(level, action); ce != nil {
		ce.Write(zf...)
	}
}

func Info(ctx context.Context, action string, fields map[string]any) {
	write(ctx, zapcore.InfoLevel, "info", action, nil, fields)
}

// Audit records a successful state change.
func Audit(ctx context.Context, action string, fields map[string]any) {
	write(ctx, zapcore.InfoLevel, "audit", action, nil, fields)
}

// Security records a denied or suspicious request.
func Security(ctx context.Context, action string, fields map[string]any) {
	write(ctx, zapcore.WarnLevel, "security", action, nil, fields)
}

func Error(ctx context.Context, action string, err error, fields map[string]any) {
	write(ctx, zapcore.ErrorLevel, "error", action, err, fields)
}
