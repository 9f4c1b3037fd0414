package engine

import (
	"fmt"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/codec"
)

// logFactory sends quickfix's own logging to zap.
type logFactory struct {
	log *zap.Logger
}

func newLogFactory(log *zap.Logger) *logFactory {
	return &logFactory{log: log}
}

func (f *logFactory) Create() (quickfix.Log, error) {
	return &zapLog{log: f.log}, nil
}

func (f *logFactory) CreateSessionLog(sid quickfix.SessionID) (quickfix.Log, error) {
	return &zapLog{log: f.log.With(zap.String("session", sid.String()))}, nil
}

type zapLog struct {
	log *zap.Logger
}

func (l *zapLog) OnIncoming(b []byte) {
	l.log.Debug("<<", zap.String("msg", codec.Display(string(b))))
}

func (l *zapLog) OnOutgoing(b []byte) {
	l.log.Debug(">>", zap.String("msg", codec.Display(string(b))))
}

func (l *zapLog) OnEvent(s string) {
	l.log.Info(s)
}

func (l *zapLog) OnEventf(format string, a ...interface{}) {
	l.log.Info(fmt.Sprintf(format, a...))
}
