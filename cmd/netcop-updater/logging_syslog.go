//go:build !windows && !plan9

package main

import (
	"fmt"
	"log/syslog"

	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// syslogCore sends zap entries to the local syslog and hooks logrus into it
func syslogCore(tag string, level zapcore.Level) (zapcore.Core, error) {
	writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog: %w", err)
	}

	hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to create syslog hook: %w", err)
	}
	logrus.AddHook(hook)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = ""
	encoderConfig.LevelKey = ""
	return newPriorityCore(writer, zapcore.NewConsoleEncoder(encoderConfig), level), nil
}
