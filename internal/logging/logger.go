package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из конфигурации; неизвестные значения дают INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger — логгер компонента. Консоль получает сообщения от minConsoleLevel,
// файл (если открыт) — от minFileLevel.
type Logger struct {
	component string
	sugar     *zap.SugaredLogger
	base      *zap.Logger
	file      *os.File

	consoleLevel zap.AtomicLevel
	fileLevel    zap.AtomicLevel
}

// Options настройки создания логгера.
type Options struct {
	Dir          string   // каталог файлов логов; пусто — только консоль
	ConsoleLevel LogLevel // по умолчанию INFO
	FileLevel    LogLevel // по умолчанию DEBUG
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// NewLogger создает логгер компонента с указанными настройками.
func NewLogger(component string, opts Options) (*Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleLevel := zap.NewAtomicLevelAt(opts.ConsoleLevel.zapLevel())
	fileLevel := zap.NewAtomicLevelAt(opts.FileLevel.zapLevel())

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), consoleLevel),
	}

	var file *os.File
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("ошибка создания директории %s: %w", opts.Dir, err)
		}
		name := fmt.Sprintf("%s_%s.log", component, time.Now().Format("2006-01-02_15-04-05"))
		f, err := os.OpenFile(filepath.Join(opts.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), fileLevel))
	}

	base := zap.New(zapcore.NewTee(cores...)).Named(component)
	return &Logger{
		component:    component,
		sugar:        base.Sugar(),
		base:         base,
		file:         file,
		consoleLevel: consoleLevel,
		fileLevel:    fileLevel,
	}, nil
}

// newConsoleLogger используется как запасной вариант, когда файл открыть не удалось.
func newConsoleLogger(component string) *Logger {
	l, err := NewLogger(component, Options{ConsoleLevel: INFO, FileLevel: DEBUG})
	if err != nil {
		nop := zap.NewNop()
		return &Logger{component: component, sugar: nop.Sugar(), base: nop}
	}
	return l
}

// SetLevels меняет пороги на лету.
func (l *Logger) SetLevels(console, file LogLevel) {
	l.consoleLevel.SetLevel(console.zapLevel())
	l.fileLevel.SetLevel(file.zapLevel())
}

// Close сбрасывает буферы и закрывает файл.
func (l *Logger) Close() error {
	_ = l.base.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Zap возвращает нижележащий *zap.Logger для библиотек, которые его принимают.
func (l *Logger) Zap() *zap.Logger { return l.base }

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// InitDefaultLogger инициализирует глобальный логгер.
func InitDefaultLogger(component string, opts Options) error {
	l, err := NewLogger(component, opts)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	return nil
}

// CloseDefaultLogger закрывает глобальный логгер.
func CloseDefaultLogger() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
}

func current() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = newConsoleLogger("server")
	}
	return defaultLogger
}

func Debug(format string, args ...interface{}) { current().Debug(format, args...) }
func Info(format string, args ...interface{})  { current().Info(format, args...) }
func Warn(format string, args ...interface{})  { current().Warn(format, args...) }
func Error(format string, args ...interface{}) { current().Error(format, args...) }

// HexDump создает hex дамп данных (не более 256 байт).
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}
	if len(data) > 256 {
		data = data[:256]
	}
	return hex.Dump(data)
}

// LogProtocolError логирует ошибку декодирования пакета вместе с сырыми байтами.
func LogProtocolError(l *Logger, connID int, err error, data []byte) {
	l.Warn("Ошибка протокола от соединения %d: %v", connID, err)
	if len(data) > 0 {
		l.Debug("Сырые данные (%d байт):\n%s", len(data), HexDump(data))
	}
}
