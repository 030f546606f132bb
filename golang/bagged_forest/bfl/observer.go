package bfl

import "go.uber.org/zap"

//Observer receives rectification warnings. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveWarning(warning Warning, row int, variance float64)
}

type nopObserver struct{}

func (nopObserver) ObserveWarning(Warning, int, float64) {}

//ZapObserver reports warnings through a zap logger.
type ZapObserver struct {
	logger *zap.Logger
}

//NewZapObserver wraps logger; a nil logger is replaced by zap.NewNop().
func NewZapObserver(logger *zap.Logger) *ZapObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapObserver{logger: logger}
}

func (o *ZapObserver) ObserveWarning(warning Warning, row int, variance float64) {
	fields := []zap.Field{
		zap.Int("row", row),
		zap.Float64("variance", variance),
		zap.Stringer("warning", warning),
	}
	switch warning {
	case WarningDominantScore:
		o.logger.Warn("rectified negative variance estimate", fields...)
	case WarningAllNegative:
		o.logger.Error("rectified all-negative variance estimate", fields...)
	}
}
