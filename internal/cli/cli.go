// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for tethr.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdLogin
	CmdLogout
	CmdWhoami
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdTUI:     "tui",
	CmdAsk:     "ask",
	CmdChat:    "chat",
	CmdLogin:   "login",
	CmdLogout:  "logout",
	CmdWhoami:  "whoami",
	CmdHistory: "history",
	CmdConfig:  "config",
	CmdVersion: "version",
	CmdHelp:    "help",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool   // Output in JSON format
	Server  string // Overrides server.url

	// Command-specific
	Query      string
	ConvoID    string
	Name       string
	Raw        bool // Print the answer without markdown rendering
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Unknown holds the command word when Parse returns CmdUnknown.
	Unknown string

	// Rest holds the arguments after the command word.
	Rest []string
}

const usageText = `tethr - streaming chat client

Usage:
  tethr                          Start the TUI (requires login)
  tethr login [--name NAME]      Sign in and remember the identity
  tethr logout                   Forget the stored identity
  tethr whoami                   Show the stored identity
  tethr ask "question"           Ask a single question
      --convo ID                 Continue an existing conversation
      --raw                      Print the answer without markdown
  tethr chat [--convo ID]        Interactive line-mode chat
  tethr history list             List your conversations
  tethr history show ID          Print one conversation
  tethr config [show]            Show the configuration
  tethr config get KEY           Print one setting (e.g. server.url)
  tethr config set KEY VALUE     Change one setting
  tethr config path              Print the config file location
  tethr version                  Show version information
  tethr help                     Show this help

Global flags:
  --server URL      Server address (overrides server.url)
  --json            Machine-readable output where supported
  -q, --quiet       Minimal output
  -v, --verbose     Debug logging to stderr

Chat commands:
  /new              Start a new conversation
  /resume ID        Continue an earlier conversation
  /history          List your conversations
  /quit             Exit

Environment:
  TETHR_HOME         Config and data directory (default ~/.tethr)
  TETHR_SERVER_URL   Server address
  TETHR_LOG_LEVEL    debug, info, warn or error
  NO_COLOR           Disable colored output
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "tethr %s\n", Version)
	fmt.Fprintf(w, "  Commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Built:  %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// VersionData is the JSON shape of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses a command line without the program name.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	word := strings.ToLower(remaining[0])
	args.Rest = remaining[1:]

	switch word {
	case "tui":
		parseConvoOnly(&args, args.Rest)
		return CmdTUI, args

	case "ask", "a":
		parseAskArgs(&args, args.Rest)
		return CmdAsk, args

	case "chat":
		parseConvoOnly(&args, args.Rest)
		return CmdChat, args

	case "login":
		p := NewArgParser(args.Rest)
		args.Name = p.Flag("name")
		if args.Name == "" {
			args.Name = p.Flag("n")
		}
		return CmdLogin, args

	case "logout":
		return CmdLogout, args

	case "whoami":
		return CmdWhoami, args

	case "history", "conversations":
		p := NewArgParser(args.Rest)
		args.Subcommand = p.Subcommand()
		args.ConvoID = p.Positional(1)
		return CmdHistory, args

	case "config":
		p := NewArgParser(args.Rest)
		args.Subcommand = p.Subcommand()
		args.ConfigKey = p.Positional(1)
		args.ConfigVal = strings.Join(p.PositionalFrom(2), " ")
		return CmdConfig, args

	case "version", "--version":
		return CmdVersion, args

	case "help", "-h", "--help":
		return CmdHelp, args

	default:
		args.Unknown = remaining[0]
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
// Global flags may appear anywhere on the line.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case arg == "--server" && i+1 < len(argv):
			i++
			args.Server = argv[i]
		case strings.HasPrefix(arg, "--server="):
			args.Server = strings.TrimPrefix(arg, "--server=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

// parseAskArgs parses ask command specific arguments.
func parseAskArgs(args *Args, rest []string) {
	p := NewArgParser(rest, "raw")
	args.Raw = p.BoolFlag("raw")
	args.ConvoID = p.FlagOrDefault("convo", p.Flag("c"))
	args.Query = JoinPositionalArgs(p, 0)
}

// parseConvoOnly parses commands whose only option is --convo.
func parseConvoOnly(args *Args, rest []string) {
	p := NewArgParser(rest)
	args.ConvoID = p.FlagOrDefault("convo", p.Flag("c"))
}
