// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/decred/chatd/internal/session"
	"github.com/decred/chatd/internal/version"
	"github.com/decred/chatd/sampleconfig"
	flags "github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFilename = "chatd.yaml"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "chatd.log"
	defaultLogLevel       = "info"
	defaultServerName     = "irc.localhost"
	defaultServerDesc     = "chatd server"
	defaultClientListen   = ":6667"
)

var (
	defaultHomeDir    = appDataDir("chatd")
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// config defines the configuration options for chatd.  Options may be given
// on the command line or under the yaml key of the same name in the
// configuration file.
//
// See loadConfig for details on the configuration load process.
type config struct {
	// General application behavior.
	ShowVersion bool   `short:"V" long:"version" yaml:"-" description:"Display version information and exit"`
	HomeDir     string `short:"A" long:"appdata" yaml:"-" description:"Path to application home directory"`
	ConfigFile  string `short:"C" long:"configfile" yaml:"-" description:"Path to configuration file"`

	// Server identity.
	ServerName string `long:"servername" yaml:"servername" description:"Name of this server used in replies and server links"`
	ServerDesc string `long:"serverdesc" yaml:"serverdesc" description:"Description announced to linked servers"`

	// Network settings.
	ClientListeners []string `long:"clientlisten" yaml:"clientlisten" description:"Add an interface/port to listen for client connections"`
	ServerListeners []string `long:"serverlisten" yaml:"serverlisten" description:"Add an interface/port to listen for server connections"`
	WSListeners     []string `long:"wslisten" yaml:"wslisten" description:"Add an interface/port to listen for WebSocket client connections"`
	LinkPass        string   `long:"linkpass" yaml:"linkpass" default-mask:"-" description:"Shared secret authenticating server links"`
	Connect         []string `long:"connect" yaml:"connect" description:"Link to the server at the given host:port on startup"`
	Proxy           string   `long:"proxy" yaml:"proxy" description:"Dial server links via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser       string   `long:"proxyuser" yaml:"proxyuser" description:"Username for proxy server"`
	ProxyPass       string   `long:"proxypass" yaml:"proxypass" default-mask:"-" description:"Password for proxy server"`

	// Session settings.
	MotdFile    string        `long:"motdfile" yaml:"motdfile" description:"File holding the message of the day"`
	CloakKey    string        `long:"cloakkey" yaml:"cloakkey" default-mask:"-" description:"Secret used to cloak hosts announced to linked servers"`
	IdleTimeout time.Duration `long:"idletimeout" yaml:"idletimeout" description:"Inactivity timeout after which clients are disconnected"`

	// Logging and resources.
	LogDir        string `long:"logdir" yaml:"logdir" description:"Directory to log output"`
	NoFileLogging bool   `long:"nofilelogging" yaml:"nofilelogging" description:"Disable file logging"`
	DebugLevel    string `short:"d" long:"debuglevel" yaml:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	MemLimit      int64  `long:"memlimit" yaml:"memlimit" description:"Soft memory limit in MiB (0 for none)"`
	Profile       string `long:"profile" yaml:"profile" description:"Enable HTTP profiling on given [addr:]port -- NOTE port must be between 1024 and 65535"`
}

// errSuppressUsage signifies that an error that happened during the initial
// configuration phase should suppress the usage output since it was not caused
// by the user.
type errSuppressUsage string

// Error implements the error interface.
func (e errSuppressUsage) Error() string {
	return string(e)
}

// appDataDir returns the default home directory for the named application:
// a hidden directory in the user's home directory on POSIX systems and a
// directory under LOCALAPPDATA on Windows.
func appDataDir(appName string) string {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, strings.ToUpper(appName[:1])+appName[1:])
		}
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(homeDir, "."+appName)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Nothing to do when no path is given.
	if path == "" {
		return path
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but the variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// createDefaultConfigFile writes the sample configuration to destPath unless
// a file already exists there.
func createDefaultConfigFile(destPath string) error {
	// Create the destination directory if it does not exist.
	err := os.MkdirAll(filepath.Dir(destPath), 0700)
	if err != nil {
		return err
	}

	dest, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer dest.Close()

	_, err = dest.WriteString(sampleconfig.Chatd())
	return err
}

// parseConfigFile decodes the yaml configuration file at path into cfg.  Keys
// absent from the file leave the existing values untouched and unknown keys
// are rejected.
func parseConfigFile(path string, cfg *config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// normalizeAddress returns addr with the default port added when it has none.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// normalizeAddresses returns a new slice with all the passed addresses
// normalized with the given default port and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	result := make([]string, 0, len(addrs))
	seen := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		addr = normalizeAddress(addr, defaultPort)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

// validServerName reports whether name can be used as a server name.  It is
// sent as a prefix and a parameter, so it may not be empty or carry spaces or
// a leading colon.
func validServerName(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t\r\n") &&
		!strings.HasPrefix(name, ":")
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in chatd functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func loadConfig(appName string) (*config, []string, error) {
	// Default config.
	cfg := config{
		HomeDir:         defaultHomeDir,
		ConfigFile:      defaultConfigFile,
		ServerName:      defaultServerName,
		ServerDesc:      defaultServerDesc,
		ClientListeners: []string{defaultClientListen},
		IdleTimeout:     session.DefaultIdleTimeout,
		LogDir:          defaultLogDir,
		DebugLevel:      defaultLogLevel,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version.String(), runtime.Version(), runtime.GOOS,
			runtime.GOARCH)
		os.Exit(0)
	}

	// Update the home directory for chatd if specified.  Since the home
	// directory is updated, other variables need to be updated to
	// reflect the new changes.
	if preCfg.HomeDir != "" {
		cfg.HomeDir, _ = filepath.Abs(cleanAndExpandPath(preCfg.HomeDir))

		if preCfg.ConfigFile == defaultConfigFile {
			cfg.ConfigFile = filepath.Join(cfg.HomeDir,
				defaultConfigFilename)
		} else {
			cfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)
		}
		if cfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(cfg.HomeDir, defaultLogDirname)
		}
	}

	// Create a default config file when one does not exist and the user
	// did not specify an override.
	if preCfg.ConfigFile == defaultConfigFile && !fileExists(cfg.ConfigFile) {
		err := createDefaultConfigFile(cfg.ConfigFile)
		if err != nil {
			str := fmt.Sprintf("failed to create a default config "+
				"file: %v", err)
			return nil, nil, errSuppressUsage(str)
		}
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	if err := parseConfigFile(cfg.ConfigFile, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n",
				err)
			fmt.Fprintln(os.Stderr, "")
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, "")
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}
	if len(remainingArgs) > 0 {
		str := "%s: unexpected arguments %v"
		return nil, nil, fmt.Errorf(str, appName, remainingArgs)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if !cfg.NoFileLogging {
		initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", appName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "")
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	if !validServerName(cfg.ServerName) {
		str := "%s: the server name %q is invalid"
		err := fmt.Errorf(str, appName, cfg.ServerName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if cfg.IdleTimeout <= 0 {
		str := "%s: the idle timeout must be positive -- parsed [%v]"
		err := fmt.Errorf(str, appName, cfg.IdleTimeout)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if cfg.MemLimit < 0 {
		str := "%s: the memory limit may not be negative -- parsed [%d]"
		err := fmt.Errorf(str, appName, cfg.MemLimit)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Server links authenticate with the shared secret, so accepting or
	// dialing them without one is a configuration error.
	if cfg.LinkPass == "" && (len(cfg.ServerListeners) > 0 ||
		len(cfg.Connect) > 0) {

		str := "%s: the serverlisten and connect options require linkpass"
		err := fmt.Errorf(str, appName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if cfg.Proxy == "" && (cfg.ProxyUser != "" || cfg.ProxyPass != "") {
		str := "%s: the proxyuser and proxypass options require proxy"
		err := fmt.Errorf(str, appName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if cfg.Profile != "" {
		cfg.Profile = portToLocalHostAddr(cfg.Profile)
		if err := validateProfileAddr(cfg.Profile); err != nil {
			err := fmt.Errorf("%s: invalid profile address: %w", appName, err)
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Add default ports and remove duplicate addresses.
	cfg.ClientListeners = normalizeAddresses(cfg.ClientListeners, "6667")
	cfg.ServerListeners = normalizeAddresses(cfg.ServerListeners, "7000")
	cfg.WSListeners = normalizeAddresses(cfg.WSListeners, "8080")
	cfg.Connect = normalizeAddresses(cfg.Connect, "7000")
	if cfg.Proxy != "" {
		cfg.Proxy = normalizeAddress(cfg.Proxy, "9050")
	}
	cfg.MotdFile = cleanAndExpandPath(cfg.MotdFile)

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.  Note this should go directly before the return.
	if configFileError != nil {
		chtdLog.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}
