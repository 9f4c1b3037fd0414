package engine

import (
	"fmt"
	"strconv"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/config"

	"github.com/samaelod/fixdesk/session"
	"github.com/samaelod/fixdesk/types"
)

const (
	defaultBeginString = quickfix.BeginStringFIXT11
	defaultApplVerID   = "FIX.5.0"
	defaultHeartBtInt  = 30
)

func yn(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// buildSettings renders one session in quickfix's settings model.
func buildSettings(s session.Settings) (*quickfix.Settings, error) {
	if s.SenderCompID == "" || s.TargetCompID == "" {
		return nil, fmt.Errorf("%w: comp ids are required", types.ErrInvalidEndpoint)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d", types.ErrInvalidEndpoint, s.Port)
	}

	begin := s.BeginString
	if begin == "" {
		begin = defaultBeginString
	}
	hb := s.HeartBtInt
	if hb <= 0 {
		hb = defaultHeartBtInt
	}

	settings := quickfix.NewSettings()
	ss := quickfix.NewSessionSettings()
	ss.Set(config.BeginString, begin)
	ss.Set(config.SenderCompID, s.SenderCompID)
	ss.Set(config.TargetCompID, s.TargetCompID)
	ss.Set(config.HeartBtInt, strconv.Itoa(hb))
	ss.Set(config.ResetOnLogon, yn(s.ResetOnLogon))
	ss.Set(config.ResetOnDisconnect, yn(s.ResetOnDisconnect))

	if begin == quickfix.BeginStringFIXT11 {
		appl := s.DefaultApplVerID
		if appl == "" {
			appl = defaultApplVerID
		}
		ss.Set(config.DefaultApplVerID, appl)
	}
	if s.LogoutTimeout > 0 {
		ss.Set(config.LogoutTimeout, strconv.Itoa(s.LogoutTimeout))
	}

	port := strconv.Itoa(s.Port)
	switch s.Role {
	case types.RoleAcceptor:
		ss.Set(config.SocketAcceptPort, port)
		// The acceptor only reads its listen host from the global section.
		if s.Host != "" {
			settings.GlobalSettings().Set(config.SocketAcceptHost, s.Host)
		}
	default:
		ss.Set(config.SocketConnectHost, s.Host)
		ss.Set(config.SocketConnectPort, port)
		if s.ReconnectInterval > 0 {
			ss.Set(config.ReconnectInterval, strconv.Itoa(s.ReconnectInterval))
		}
	}

	if _, err := settings.AddSession(ss); err != nil {
		return nil, fmt.Errorf("session settings: %w", err)
	}
	return settings, nil
}
