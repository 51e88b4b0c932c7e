/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger is the levelled logger shared by every component. Level
// gating happens here; formatting and output are delegated to zap.
//
// The level defaults to Warn and can be set with SHMKV_LOG_LEVEL (0 Trace
// to 5 NoPrint). SHMKV_DEBUG_MODE switches to zap's development encoder
// with coloured levels.
package logger

import (
	"io"
	"os"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNoPrint
)

var (
	level     atomic.Int32
	debugMode bool

	base atomic.Pointer[zap.Logger]
)

func init() {
	level.Store(LevelWarn)
	if v := os.Getenv("SHMKV_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= LevelTrace && n <= LevelNoPrint {
			level.Store(int32(n))
		}
	}
	if os.Getenv("SHMKV_DEBUG_MODE") != "" {
		debugMode = true
	}
	SetOutput(os.Stderr)
}

// SetLogLevel changes the level of every logger. Out of range values are
// ignored.
func SetLogLevel(l int) {
	if l >= LevelTrace && l <= LevelNoPrint {
		level.Store(int32(l))
	}
}

// GetLogLevel returns the current level.
func GetLogLevel() int {
	return int(level.Load())
}

// SetOutput redirects every logger to w.
func SetOutput(w io.Writer) {
	var cfg zapcore.EncoderConfig
	if debugMode {
		cfg = zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	// Gating is done by level above, so the core accepts everything.
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(zapcore.AddSync(w)), zapcore.DebugLevel)
	base.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
}

// Sync flushes buffered output.
func Sync() error {
	return base.Load().Sync()
}

// Logger is a named logger.
type Logger struct {
	name string
}

// New returns a logger whose lines carry name.
func New(name string) *Logger {
	return &Logger{name: name}
}

func (l *Logger) sugar() *zap.SugaredLogger {
	return base.Load().Named(l.name).Sugar()
}

func enabled(lv int) bool {
	return int(level.Load()) <= lv
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	if enabled(LevelError) {
		l.sugar().Errorf(format, a...)
	}
}

func (l *Logger) Error(v interface{}) {
	if enabled(LevelError) {
		l.sugar().Error(v)
	}
}

func (l *Logger) Warnf(format string, a ...interface{}) {
	if enabled(LevelWarn) {
		l.sugar().Warnf(format, a...)
	}
}

func (l *Logger) Infof(format string, a ...interface{}) {
	if enabled(LevelInfo) {
		l.sugar().Infof(format, a...)
	}
}

func (l *Logger) Info(v interface{}) {
	if enabled(LevelInfo) {
		l.sugar().Info(v)
	}
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	if enabled(LevelDebug) {
		l.sugar().Debugf(format, a...)
	}
}

// Tracef logs at zap's debug level with a trace marker; zap has no level
// below debug.
func (l *Logger) Tracef(format string, a ...interface{}) {
	if enabled(LevelTrace) {
		l.sugar().With("trace", true).Debugf(format, a...)
	}
}
