package main

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// syslogWriter is the subset of *syslog.Writer used to emit entries at a
// given priority
type syslogWriter interface {
	Crit(m string) error
	Err(m string) error
	Warning(m string) error
	Info(m string) error
	Debug(m string) error
}

// priorityCore writes zap entries to syslog at the priority matching their
// level. Entries tagged severity=critical go out as LOG_CRIT.
type priorityCore struct {
	zapcore.LevelEnabler
	enc      zapcore.Encoder
	out      syslogWriter
	critical bool
}

func newPriorityCore(out syslogWriter, enc zapcore.Encoder, enab zapcore.LevelEnabler) *priorityCore {
	return &priorityCore{LevelEnabler: enab, enc: enc, out: out}
}

func (c *priorityCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &priorityCore{
		LevelEnabler: c.LevelEnabler,
		enc:          c.enc.Clone(),
		out:          c.out,
		critical:     c.critical || isCritical(fields),
	}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *priorityCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *priorityCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := strings.TrimSuffix(buf.String(), "\n")
	buf.Free()

	switch {
	case c.critical || isCritical(fields) || ent.Level >= zapcore.DPanicLevel:
		return c.out.Crit(msg)
	case ent.Level == zapcore.ErrorLevel:
		return c.out.Err(msg)
	case ent.Level == zapcore.WarnLevel:
		return c.out.Warning(msg)
	case ent.Level == zapcore.DebugLevel:
		return c.out.Debug(msg)
	default:
		return c.out.Info(msg)
	}
}

func (c *priorityCore) Sync() error {
	return nil
}

func isCritical(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == "severity" && f.Type == zapcore.StringType && f.String == "critical" {
			return true
		}
	}
	return false
}
