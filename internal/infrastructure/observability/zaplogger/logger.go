// Package zaplogger adapts zap to the observability.Logger port.
package zaplogger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

// Redacted replaces the value of any field whose key names a credential.
const Redacted = "[redacted]"

var sensitiveKeys = []string{"secret", "password", "signature", "authorization"}

type logger struct{ l *zap.Logger }

// New adapts a configured zap logger to the observability.Logger port and binds the fixed fields.
func New(base *zap.Logger, fixed ...observability.Field) observability.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &logger{l: base.WithOptions(zap.AddCallerSkip(1)).With(toZapFields(fixed)...)}
}

func (z *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return z
	}
	return &logger{l: z.l.With(toZapFields(fields)...)}
}

func (z *logger) Debug(msg string, fields ...observability.Field) { z.l.Debug(msg, toZapFields(fields)...) }
func (z *logger) Info(msg string, fields ...observability.Field)  { z.l.Info(msg, toZapFields(fields)...) }
func (z *logger) Warn(msg string, fields ...observability.Field)  { z.l.Warn(msg, toZapFields(fields)...) }
func (z *logger) Error(msg string, fields ...observability.Field) { z.l.Error(msg, toZapFields(fields)...) }

// Sync flushes buffered entries.
func (z *logger) Sync() error { return z.l.Sync() }

func toZapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		out = append(out, toZapField(f))
	}
	return out
}

func toZapField(f observability.Field) zap.Field {
	if sensitive(f.Key) {
		return zap.String(f.Key, Redacted)
	}
	switch v := f.Value.(type) {
	case error:
		return zap.NamedError(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case time.Time:
		return zap.Time(f.Key, v)
	case decimal.Decimal:
		// money stays a string so it never round-trips through float64
		return zap.String(f.Key, v.String())
	case fmt.Stringer:
		return zap.Stringer(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}

func sensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
