package observability

import "github.com/apex/log"

type apexLogger struct {
	entry log.Interface
}

// NewApexLogger adapts an apex/log logger (or entry) to Logger.
// A nil argument uses the package-level apex logger.
func NewApexLogger(l log.Interface) Logger {
	if l == nil {
		l = log.Log
	}
	return apexLogger{entry: l}
}

func (a apexLogger) Debug(msg string, fields ...Field) { a.with(fields).Debug(msg) }
func (a apexLogger) Info(msg string, fields ...Field)  { a.with(fields).Info(msg) }
func (a apexLogger) Warn(msg string, fields ...Field)  { a.with(fields).Warn(msg) }
func (a apexLogger) Error(msg string, fields ...Field) { a.with(fields).Error(msg) }

func (a apexLogger) With(fields ...Field) Logger {
	return apexLogger{entry: a.with(fields)}
}

func (a apexLogger) with(fields []Field) log.Interface {
	if len(fields) == 0 {
		return a.entry
	}
	return a.entry.WithFields(toApexFields(fields))
}

func toApexFields(fields []Field) log.Fields {
	out := make(log.Fields, len(fields))
	for _, f := range fields {
		out[f.Key()] = f.Value()
	}
	return out
}
