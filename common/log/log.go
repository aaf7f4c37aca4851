package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// 未调用 InitLog 时（例如单元测试）使用默认 logger
var logger = log.New(os.Stdout)

func InitLog(appName string, logLevel string) {
	// stdout 而不是 stderr，避免控制台整片标红
	logger = log.New(os.Stdout)
	logger.SetPrefix(appName)
	logger.SetReportTimestamp(true)
	logger.SetTimeFormat(time.DateTime)
	logger.SetReportCaller(true)
	logger.SetCallerOffset(1)
	SetLevel(logLevel)
}

// SetOutput 替换输出目标
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetLevel 运行时调整日志级别，配置热更新时调用
func SetLevel(logLevel string) {
	switch strings.ToLower(logLevel) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

func Fatal(format string, args ...any) {
	if len(args) == 0 {
		logger.Fatal(format)
		return
	}
	logger.Fatalf(format, args...)
}

func Info(format string, args ...any) {
	if len(args) == 0 {
		logger.Info(format)
		return
	}
	logger.Infof(format, args...)
}

func Warn(format string, args ...any) {
	if len(args) == 0 {
		logger.Warn(format)
		return
	}
	logger.Warnf(format, args...)
}

func Error(format string, args ...any) {
	if len(args) == 0 {
		logger.Error(format)
		return
	}
	logger.Errorf(format, args...)
}

func Debug(format string, args ...any) {
	if len(args) == 0 {
		logger.Debug(format)
		return
	}
	logger.Debugf(format, args...)
}
