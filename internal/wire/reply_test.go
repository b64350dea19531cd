// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "testing"

// TestRender ensures the client and federation catalogs render the expected
// lines.
func TestRender(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		want  string
	}{
		{"welcome", &RplWelcome{Msg: "hi"}, ":irc.test 001 bob :hi"},
		{"yourhost", &RplYourHost{}, ":irc.test 002 bob :Your host is irc.test"},
		{"mode self", &RplModeSelf{Mode: 'i', Enabled: true}, ":bob MODE bob :+i"},
		{"mode", &RplMode{Target: "#x", Mode: 'n'}, ":irc.test MODE #x -n"},
		{"motd start", &RplMotdStart{}, ":irc.test 375 bob :- irc.test Message of the Day -"},
		{"motd", &RplMotd{Line: "hello"}, ":irc.test 372 bob :- hello"},
		{"motd end", &RplMotdEnd{}, ":irc.test 376 bob :End of /MOTD command."},
		{"nick in use", &RplNickInUse{Nick: "alice"}, ":irc.test 433 * alice :Nickname is already in use."},
		{"nick not found", &RplNickNotFound{Target: "carol"}, ":irc.test 401 bob carol :No such nick/channel"},
		{"no such channel", &RplNoSuchChannel{Channel: "x"}, ":irc.test 403 bob x :No such channel"},
		{"cannot send", &RplCannotSendToChan{Channel: "#y"}, ":irc.test 404 bob #y :Cannot send to channel"},
		{"need params", &RplNeedMoreParams{Command: "JOIN"}, ":irc.test 461 bob JOIN :Not enough parameters"},
		{"pong", &RplPong{Msg: "abc"}, ":irc.test PONG irc.test :abc"},
		{"privmsg", &RplPrivmsg{Mask: "a!u@h", Msg: "yo"}, ":a!u@h PRIVMSG bob :yo"},
		{"privmsg chan", &RplPrivmsgChan{Mask: "a!u@h", Channel: "#x", Msg: "yo"}, ":a!u@h PRIVMSG #x :yo"},
		{"join", &RplJoin{Mask: "a!u@h", Channel: "#x"}, ":a!u@h JOIN #x"},
		{"part", &RplPart{Mask: "a!u@h", Channel: "#x", Reason: "bye"}, ":a!u@h PART #x :bye"},
		{"names", &RplNameReply{Channel: "#x", Names: []string{"a", "b"}}, ":irc.test 353 bob = #x :a b"},
		{"end of names", &RplEndOfNames{Channel: "#x"}, ":irc.test 366 bob #x :End of /NAMES list"},
		{"error", &RplError{Msg: "Closing link"}, "ERROR :Closing link"},
		{"pass", &MsgPass{Password: "s3cret"}, "PASS :s3cret"},
		{"server", &MsgServer{Name: "irc.test", Hops: 1, Description: "a test"}, "SERVER irc.test 1 :a test"},
		{"protoctl", &MsgProtoCtl{Options: []ProtoOption{ProtoEAuth("irc.test"), ProtoNoQuit, ProtoSjoin}}, "PROTOCTL EAUTH=irc.test NOQUIT SJOIN"},
		{"nick", &MsgNick{
			Nick: "bob", Hops: 0, Timestamp: "1700000000", User: "b",
			Host: "127.0.0.1", ServerName: "irc.test", ServiceStamp: "0",
			Modes: "+i", CloakedHost: "AB.CD.IP", RealName: "Bob B",
		}, "NICK bob 1 1700000000 b 127.0.0.1 irc.test 0 +i AB.CD.IP :Bob B"},
		{"sjoin", &MsgSjoin{Timestamp: "5", Channel: "#x", Members: []string{"bob", "alice"}}, ":irc.test SJOIN 5 #x :bob alice"},
		{"eos", &MsgEOS{}, "EOS"},
		{"server pong", &MsgPong{Msg: "peer"}, "PONG :peer"},
	}

	for _, test := range tests {
		rc := RenderContext{ServerName: "irc.test", Nick: "bob"}
		if got := test.reply.Render(&rc); got != test.want {
			t.Errorf("%q: mismatched line\ngot:  %s\nwant: %s", test.name,
				got, test.want)
		}
	}
}

// TestRenderWhoSequence ensures the WHO listing records the channel in the
// render context for the lines that follow it.
func TestRenderWhoSequence(t *testing.T) {
	rc := RenderContext{ServerName: "irc.test", Nick: "bob"}
	lines := []string{
		(&RplWhoReply{Channel: "#x"}).Render(&rc),
		(&RplWhoSpcRpl{Mask: "alice", Modes: "H"}).Render(&rc),
		(&RplEndOfWho{}).Render(&rc),
	}
	want := []string{
		":irc.test 352 bob #x %ctnf,152",
		":irc.test 354 bob 152 #x alice H",
		":irc.test 315 bob #x :End of /WHO list.",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("#%d: mismatched line\ngot:  %s\nwant: %s", i, lines[i],
				want[i])
		}
	}
}

// TestRenderUnregisteredNick ensures numerics address "*" before the client
// has a nick.
func TestRenderUnregisteredNick(t *testing.T) {
	rc := RenderContext{ServerName: "irc.test"}
	got := (&RplNeedMoreParams{Command: "USER"}).Render(&rc)
	const want = ":irc.test 461 * USER :Not enough parameters"
	if got != want {
		t.Errorf("mismatched line -- got %q, want %q", got, want)
	}
}
