// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
chatd is a chat daemon speaking an IRC-like client protocol that can link with
other daemons to share its users and channels.

The default options are sane for most users.  This means chatd will work 'out
of the box' for most users.  However, there are also a wide variety of flags
that can be used to control it.

The following section provides a usage overview which enumerates the flags.  An
interesting point to note is that the long form of all of these options
(except -A, -C and -V) can be specified in a YAML configuration file that is
automatically parsed when chatd starts up.  By default, the configuration file
is located at ~/.chatd/chatd.yaml on POSIX-style operating systems and
%LOCALAPPDATA%\Chatd\chatd.yaml on Windows.  The -C (--configfile) flag, as
shown below, can be used to override this location.

Usage:

	chatd [OPTIONS]

Application Options:

	-V, --version                Display version information and exit
	-A, --appdata=               Path to application home directory
	-C, --configfile=            Path to configuration file
	    --servername=            Name of this server used in replies and server
	                             links (default: irc.localhost)
	    --serverdesc=            Description announced to linked servers
	                             (default: chatd server)
	    --clientlisten=          Add an interface/port to listen for client
	                             connections (default: :6667)
	    --serverlisten=          Add an interface/port to listen for server
	                             connections (default port: 7000)
	    --wslisten=              Add an interface/port to listen for WebSocket
	                             client connections (default port: 8080)
	    --linkpass=              Shared secret authenticating server links
	    --connect=               Link to the server at the given host:port on
	                             startup
	    --proxy=                 Dial server links via SOCKS5 proxy (eg.
	                             127.0.0.1:9050)
	    --proxyuser=             Username for proxy server
	    --proxypass=             Password for proxy server
	    --motdfile=              File holding the message of the day
	    --cloakkey=              Secret used to cloak hosts announced to linked
	                             servers
	    --idletimeout=           Inactivity timeout after which clients are
	                             disconnected (default: 6m0s)
	    --logdir=                Directory to log output
	    --nofilelogging          Disable file logging
	-d, --debuglevel=            Logging level for all subsystems {trace, debug,
	                             info, warn, error, critical} -- You may also
	                             specify <subsystem>=<level>,<subsystem2>=<level>,...
	                             to set the log level for individual subsystems
	                             -- Use show to list available subsystems
	                             (default: info)
	    --memlimit=              Soft memory limit in MiB (0 for none)
	    --profile=               Enable HTTP profiling on given [addr:]port --
	                             NOTE port must be between 1024 and 65535

Help Options:

	-h, --help           Show this help message

Sending SIGHUP reloads the message of the day file.
*/
package main
