package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logLevelFromEnv())
	logg.SetOutput(os.Stdout)
}

func logLevelFromEnv() logrus.Level {
	raw := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if raw == "" {
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func logFields(moduleName string, funcName string, context string, data any) logrus.Fields {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	return fields
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if logger == nil {
		return
	}
	logger.WithFields(logFields(moduleName, funcName, context, data)).Error(err.Error())
}

func LogWarn(logger *logrus.Logger, moduleName string, funcName string, context string, data any, msg string) {
	if logger == nil {
		return
	}
	logger.WithFields(logFields(moduleName, funcName, context, data)).Warn(msg)
}

func LogInfo(logger *logrus.Logger, moduleName string, funcName string, context string, data any, msg string) {
	if logger == nil {
		return
	}
	logger.WithFields(logFields(moduleName, funcName, context, data)).Info(msg)
}
