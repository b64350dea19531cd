// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"strings"
)

// RenderContext holds the per-connection state needed to render replies.  It
// is owned by the goroutine writing to the connection, so it needs no locking.
type RenderContext struct {
	// ServerName is the name of this daemon used as the source of numerics.
	ServerName string

	// Nick is the nick of the client the connection belongs to.  It is "*"
	// until the client has chosen one.
	Nick string

	// CurChan is the channel of the WHO listing currently being rendered.
	CurChan string
}

// nick returns the nick to address numerics to.
func (rc *RenderContext) nick() string {
	if rc.Nick == "" {
		return "*"
	}
	return rc.Nick
}

// Reply is an outbound protocol line that is rendered against the context of
// the connection it is written to.
type Reply interface {
	// Render returns the line without its terminator.  Some replies update
	// the context so later replies in the same sequence render correctly.
	Render(rc *RenderContext) string
}

// modeSymbol returns the sign used to show a mode being set or cleared.
func modeSymbol(enabled bool) string {
	if enabled {
		return "+"
	}
	return "-"
}

// RplWelcome is the 001 numeric sent once registration completes.
type RplWelcome struct {
	Msg string
}

// Render satisfies the Reply interface.
func (r *RplWelcome) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 001 %s :%s", rc.ServerName, rc.nick(), r.Msg)
}

// RplYourHost is the 002 numeric.
type RplYourHost struct{}

// Render satisfies the Reply interface.
func (r *RplYourHost) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 002 %s :Your host is %s", rc.ServerName,
		rc.nick(), rc.ServerName)
}

// RplModeSelf announces a user mode change to the client it applies to.
type RplModeSelf struct {
	Mode    rune
	Enabled bool
}

// Render satisfies the Reply interface.
func (r *RplModeSelf) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s MODE %s :%s%c", rc.nick(), rc.nick(),
		modeSymbol(r.Enabled), r.Mode)
}

// RplMode announces a mode change on an arbitrary target.
type RplMode struct {
	Target  string
	Mode    rune
	Enabled bool
}

// Render satisfies the Reply interface.
func (r *RplMode) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s MODE %s %s%c", rc.ServerName, r.Target,
		modeSymbol(r.Enabled), r.Mode)
}

// RplMotdStart is the 375 numeric.
type RplMotdStart struct{}

// Render satisfies the Reply interface.
func (r *RplMotdStart) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 375 %s :- %s Message of the Day -", rc.ServerName,
		rc.nick(), rc.ServerName)
}

// RplMotd is a single 372 line of the message of the day.
type RplMotd struct {
	Line string
}

// Render satisfies the Reply interface.
func (r *RplMotd) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 372 %s :- %s", rc.ServerName, rc.nick(), r.Line)
}

// RplMotdEnd is the 376 numeric.
type RplMotdEnd struct{}

// Render satisfies the Reply interface.
func (r *RplMotdEnd) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 376 %s :End of /MOTD command.", rc.ServerName,
		rc.nick())
}

// RplNickInUse is the 433 numeric sent when the requested nick is claimed.
type RplNickInUse struct {
	Nick string
}

// Render satisfies the Reply interface.
func (r *RplNickInUse) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 433 * %s :Nickname is already in use.",
		rc.ServerName, r.Nick)
}

// RplNickNotFound is the 401 numeric.
type RplNickNotFound struct {
	Target string
}

// Render satisfies the Reply interface.
func (r *RplNickNotFound) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 401 %s %s :No such nick/channel", rc.ServerName,
		rc.nick(), r.Target)
}

// RplNoSuchChannel is the 403 numeric.
type RplNoSuchChannel struct {
	Channel string
}

// Render satisfies the Reply interface.
func (r *RplNoSuchChannel) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 403 %s %s :No such channel", rc.ServerName,
		rc.nick(), r.Channel)
}

// RplCannotSendToChan is the 404 numeric.
type RplCannotSendToChan struct {
	Channel string
}

// Render satisfies the Reply interface.
func (r *RplCannotSendToChan) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 404 %s %s :Cannot send to channel", rc.ServerName,
		rc.nick(), r.Channel)
}

// RplNeedMoreParams is the 461 numeric.
type RplNeedMoreParams struct {
	Command string
}

// Render satisfies the Reply interface.
func (r *RplNeedMoreParams) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 461 %s %s :Not enough parameters", rc.ServerName,
		rc.nick(), r.Command)
}

// RplPong answers a client PING.
type RplPong struct {
	Msg string
}

// Render satisfies the Reply interface.
func (r *RplPong) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s PONG %s :%s", rc.ServerName, rc.ServerName, r.Msg)
}

// RplPrivmsg delivers a direct message to the client.
type RplPrivmsg struct {
	Mask string
	Msg  string
}

// Render satisfies the Reply interface.
func (r *RplPrivmsg) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s PRIVMSG %s :%s", r.Mask, rc.nick(), r.Msg)
}

// RplPrivmsgChan delivers a channel message to the client.
type RplPrivmsgChan struct {
	Mask    string
	Channel string
	Msg     string
}

// Render satisfies the Reply interface.
func (r *RplPrivmsgChan) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s PRIVMSG %s :%s", r.Mask, r.Channel, r.Msg)
}

// RplJoin announces a join.
type RplJoin struct {
	Mask    string
	Channel string
}

// Render satisfies the Reply interface.
func (r *RplJoin) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s JOIN %s", r.Mask, r.Channel)
}

// RplPart announces a part.
type RplPart struct {
	Mask    string
	Channel string
	Reason  string
}

// Render satisfies the Reply interface.
func (r *RplPart) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s PART %s :%s", r.Mask, r.Channel, r.Reason)
}

// RplWhoReply starts a WHO listing for a channel.  Rendering it records the
// channel in the context for the WhoSpcRpl and EndOfWho lines that follow.
type RplWhoReply struct {
	Channel string
}

// Render satisfies the Reply interface.
func (r *RplWhoReply) Render(rc *RenderContext) string {
	rc.CurChan = r.Channel
	return fmt.Sprintf(":%s 352 %s %s %%ctnf,152", rc.ServerName, rc.nick(),
		r.Channel)
}

// RplWhoSpcRpl is a single 354 entry of a WHO listing.
type RplWhoSpcRpl struct {
	Mask  string
	Modes string
}

// Render satisfies the Reply interface.
func (r *RplWhoSpcRpl) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 354 %s 152 %s %s %s", rc.ServerName, rc.nick(),
		rc.CurChan, r.Mask, r.Modes)
}

// RplEndOfWho is the 315 numeric.
type RplEndOfWho struct{}

// Render satisfies the Reply interface.
func (r *RplEndOfWho) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 315 %s %s :End of /WHO list.", rc.ServerName,
		rc.nick(), rc.CurChan)
}

// RplNameReply is a 353 listing of channel member nicks.
type RplNameReply struct {
	Channel string
	Names   []string
}

// Render satisfies the Reply interface.
func (r *RplNameReply) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 353 %s = %s :%s", rc.ServerName, rc.nick(),
		r.Channel, strings.Join(r.Names, " "))
}

// RplEndOfNames is the 366 numeric.
type RplEndOfNames struct {
	Channel string
}

// Render satisfies the Reply interface.
func (r *RplEndOfNames) Render(rc *RenderContext) string {
	return fmt.Sprintf(":%s 366 %s %s :End of /NAMES list", rc.ServerName,
		rc.nick(), r.Channel)
}

// RplError tells the client the connection is being closed.
type RplError struct {
	Msg string
}

// Render satisfies the Reply interface.
func (r *RplError) Render(rc *RenderContext) string {
	return "ERROR :" + r.Msg
}
