// Copyright 2023 The powsim Authors
// This file is part of the powsim library.
//
// The powsim library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powsim library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powsim library. If not, see <http://www.gnu.org/licenses/>.

package log

import (
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ModuleID identifies the subsystem a logger belongs to.
type ModuleID int

const (
	CMD ModuleID = iota
	Simulation
	BlockChain
	Networks
	NodeMain
	Storage
	Exporter
)

func (m ModuleID) String() string {
	switch m {
	case CMD:
		return "cmd"
	case Simulation:
		return "simulation"
	case BlockChain:
		return "blockchain"
	case Networks:
		return "networks"
	case NodeMain:
		return "node"
	case Storage:
		return "storage"
	case Exporter:
		return "exporter"
	default:
		return "base"
	}
}

// Logger writes key-value records. Keys and values alternate in ctx.
type Logger interface {
	NewWith(ctx ...interface{}) Logger
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	// Crit logs and exits the process.
	Crit(msg string, ctx ...interface{})
}

var (
	mu        sync.Mutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	baseSugar *zap.SugaredLogger
)

func baseLogger() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if baseSugar == nil {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(colorable.NewColorableStderr()),
			level,
		)
		baseSugar = zap.New(core).Sugar()
	}
	return baseSugar
}

// ChangeGlobalLogLevel applies the verbosity given on the command line.
// 0=error 1=warn 2=info 3=debug
func ChangeGlobalLogLevel(verbosity int) {
	switch {
	case verbosity <= 0:
		level.SetLevel(zapcore.ErrorLevel)
	case verbosity == 1:
		level.SetLevel(zapcore.WarnLevel)
	case verbosity == 2:
		level.SetLevel(zapcore.InfoLevel)
	default:
		level.SetLevel(zapcore.DebugLevel)
	}
}

// NewModuleLogger returns a logger tagged with the module name.
func NewModuleLogger(mi ModuleID) Logger {
	return &zapLogger{baseLogger().With("module", mi.String())}
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapLogger) NewWith(ctx ...interface{}) Logger {
	return &zapLogger{l.sugar.With(ctx...)}
}

func (l *zapLogger) Debug(msg string, ctx ...interface{}) { l.sugar.Debugw(msg, ctx...) }
func (l *zapLogger) Info(msg string, ctx ...interface{})  { l.sugar.Infow(msg, ctx...) }
func (l *zapLogger) Warn(msg string, ctx ...interface{})  { l.sugar.Warnw(msg, ctx...) }
func (l *zapLogger) Error(msg string, ctx ...interface{}) { l.sugar.Errorw(msg, ctx...) }

func (l *zapLogger) Crit(msg string, ctx ...interface{}) {
	l.sugar.Errorw(msg, ctx...)
	os.Exit(1)
}
