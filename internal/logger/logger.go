package logger

import (
	"io"
	"os"

	"bookstore-cart/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger оборачивает logrus и настраивается из конфигурации
type Logger struct {
	*logrus.Logger
}

// New создаёт логгер с указанным уровнем, форматом и выводом
func New(cfg *config.LoggerConfig) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	// Пишем одновременно в stdout и в файл, если он задан
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).Warn("Failed to open log file, using stdout only")
			log.SetOutput(os.Stdout)
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, file))
		}
	} else {
		log.SetOutput(os.Stdout)
	}

	return &Logger{Logger: log}
}

// WithComponent возвращает запись с полем компонента
func (l *Logger) WithComponent(name string) *logrus.Entry {
	return l.WithField("component", name)
}
