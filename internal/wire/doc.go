// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package wire implements the line oriented chat protocol.

Inbound lines are parsed into a Message by ParseLine.  Outbound lines are
values satisfying the Reply interface and are rendered against a
RenderContext holding the per-connection details (server name, client nick)
that the client protocol interleaves into most replies.

Two catalogs of replies are provided.  The Rpl types form the client facing
catalog and the Msg types form the server-to-server linking catalog used
during a federation burst.
*/
package wire
