// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"strings"
)

// ProtoOption is a single capability token advertised with PROTOCTL.
type ProtoOption string

// These constants define the capability tokens understood by the link
// protocol.
const (
	ProtoNoQuit    ProtoOption = "NOQUIT"
	ProtoNickV2    ProtoOption = "NICKv2"
	ProtoSjoin     ProtoOption = "SJOIN"
	ProtoSj3       ProtoOption = "SJ3"
	ProtoClk       ProtoOption = "CLK"
	ProtoNickIP    ProtoOption = "NICKIP"
	ProtoTklExt    ProtoOption = "TKLEXT"
	ProtoEsvid     ProtoOption = "ESVID"
	ProtoMlock     ProtoOption = "MLOCK"
	ProtoExtSwhois ProtoOption = "EXTSWHOIS"
)

// ProtoEAuth returns the EAUTH token announcing the server name.
func ProtoEAuth(serverName string) ProtoOption {
	return ProtoOption("EAUTH=" + serverName)
}

// MsgPass carries the shared link secret.
type MsgPass struct {
	Password string
}

// Render satisfies the Reply interface.
func (m *MsgPass) Render(rc *RenderContext) string {
	return "PASS :" + m.Password
}

// MsgServer introduces this daemon to a peer.
type MsgServer struct {
	Name        string
	Hops        uint32
	Description string
}

// Render satisfies the Reply interface.
func (m *MsgServer) Render(rc *RenderContext) string {
	return fmt.Sprintf("SERVER %s %d :%s", m.Name, m.Hops, m.Description)
}

// MsgProtoCtl advertises the capability tokens of this daemon.
type MsgProtoCtl struct {
	Options []ProtoOption
}

// Render satisfies the Reply interface.
func (m *MsgProtoCtl) Render(rc *RenderContext) string {
	opts := make([]string, 0, len(m.Options))
	for _, opt := range m.Options {
		opts = append(opts, string(opt))
	}
	return "PROTOCTL " + strings.Join(opts, " ")
}

// MsgNick introduces a user during a burst.  The hop count is incremented by
// one on the wire since the user is one hop further away from the receiver.
type MsgNick struct {
	Nick         string
	Hops         uint32
	Timestamp    string
	User         string
	Host         string
	ServerName   string
	ServiceStamp string
	Modes        string
	CloakedHost  string
	RealName     string
}

// Render satisfies the Reply interface.
func (m *MsgNick) Render(rc *RenderContext) string {
	modes := m.Modes
	if modes == "" {
		modes = "+"
	}
	return fmt.Sprintf("NICK %s %d %s %s %s %s %s %s %s :%s", m.Nick, m.Hops+1,
		m.Timestamp, m.User, m.Host, m.ServerName, m.ServiceStamp, modes,
		m.CloakedHost, m.RealName)
}

// MsgSjoin introduces a channel and its members during a burst.
type MsgSjoin struct {
	Timestamp string
	Channel   string
	Members   []string
}

// Render satisfies the Reply interface.
func (m *MsgSjoin) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s SJOIN %s %s :%s", rc.ServerName, m.Timestamp,
		m.Channel, strings.Join(m.Members, " "))
}

// MsgEOS marks the end of a burst.
type MsgEOS struct{}

// Render satisfies the Reply interface.
func (m *MsgEOS) Render(rc *RenderContext) string {
	return "EOS"
}

// MsgPong answers a PING from a peer daemon.
type MsgPong struct {
	Msg string
}

// Render satisfies the Reply interface.
func (m *MsgPong) Render(rc *RenderContext) string {
	return "PONG :" + m.Msg
}
