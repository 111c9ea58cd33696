package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type LoggerTestSuite struct {
	suite.Suite
}

func (s *LoggerTestSuite) TestKeyValues() {
	core, logs := observer.New(zapcore.DebugLevel)
	log := New(zap.New(core)).With("component", "test")

	log.Debug("debug", "n", 1)
	log.Info("info")
	log.Warn("warn", "error", "boom")
	log.Error("error")

	entries := logs.All()
	s.Require().Len(entries, 4)
	s.Equal(zapcore.DebugLevel, entries[0].Level)
	s.Equal(map[string]any{"component": "test", "n": int64(1)}, entries[0].ContextMap())
	s.Equal("boom", entries[2].ContextMap()["error"])
	s.Equal(zapcore.ErrorLevel, entries[3].Level)
}

func (s *LoggerTestSuite) TestDefault() {
	s.NotNil(Default())

	core, logs := observer.New(zapcore.InfoLevel)
	SetDefault(New(zap.New(core)))
	defer SetDefault(nil)

	Default().Info("hello")
	s.Equal(1, logs.Len())

	SetDefault(nil)
	Default().Info("dropped")
	s.Equal(1, logs.Len())
}

func (s *LoggerTestSuite) TestNewWithLevel() {
	_, err := NewWithLevel("loud")
	s.Error(err)

	l, err := NewWithLevel("warn")
	s.NoError(err)
	s.NotNil(l)
}

func TestLoggerTestSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
