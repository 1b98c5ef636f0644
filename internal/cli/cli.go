// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for llmui.
package cli

import (
	"fmt"
	"os"
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
	CmdServe Command = iota
	CmdAsk
	CmdChat
	CmdSessions
	CmdModels
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	Model   string
	JSON    bool // Output in JSON format

	// Command-specific
	Query      string // joined positional args for ask
	Subcommand string // first positional arg for sessions/config
	Name       string // chat name for sessions show/export/delete
	File       string // file to include with ask
	Format     string // export format (md|json|html)
	Host       string // serve bind host override
	Port       int    // serve port override (0 = from config)
	Confirm    bool   // required for destructive sessions subcommands

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `llmui - local chat UI for Ollama

Llmui serves a small browser chat page backed by a local Ollama server,
with saved chat history, full-text search and per-session logs. It also
works entirely from the terminal.

Usage:
  llmui                       Start the web UI (default, same as serve)
  llmui serve                 Start the web UI server
    --host ADDR               Bind address (default: 127.0.0.1)
    --port N                  Listen port (default: 8787)
  llmui ask "question"        Ask a single question
    -f, --file FILE           Include file content with the question
  llmui chat                  Interactive terminal chat
  llmui sessions [subcommand] Saved chat management
  llmui models                List installed Ollama models
  llmui status                Show server and Ollama status
  llmui config [show|set|path]
  llmui version               Show version
  llmui help                  Show this help

Sessions Commands:
  llmui sessions list               List saved chats
  llmui sessions show <name>        Print a saved chat
  llmui sessions search <query>     Full-text search across saved chats
  llmui sessions export <name>      Export a saved chat
    --format md|json|html           Export format (default: md)
  llmui sessions delete <name>      Delete a saved chat
    --confirm                       Required confirmation flag

Chat Commands (during llmui chat):
  /help               Show available commands
  /clear              Clear the conversation
  /model [name]       Show or switch model
  /save [name]        Save the conversation
  /load <name>        Load a saved chat
  /list               List saved chats
  /search <query>     Search saved chats
  /export [format]    Export the conversation (md|json|html)
  /stats              Show session statistics
  /quit               Exit chat (also Ctrl+D)

Global Flags:
  -q, --quiet     Minimal output
  -v, --verbose   Debug output
  -m, --model NAME  Override default model
  --json          Output in JSON format

Examples:
  llmui                               Open http://127.0.0.1:8787
  llmui serve --port 9000             Serve on a different port
  llmui ask "What is a goroutine?"    One-shot question
  llmui ask "Review this:" --file main.go
  llmui chat --model llama3.2         Terminal chat with a specific model
  llmui sessions list                 List saved chats
  llmui sessions export go-help --format html
  llmui sessions search "context cancellation"
  llmui status --json                 Machine-readable status

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("llmui version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	args := os.Args[1:]

	// Parse global flags first
	remaining, parsedArgs := parseGlobalFlags(args)

	// If no remaining args, default to serving the web UI
	if len(remaining) == 0 {
		return CmdServe, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "serve", "server", "web":
		parseServeArgs(&parsedArgs, remaining)
		return CmdServe, parsedArgs

	case "ask":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "chat":
		return CmdChat, parsedArgs

	case "sessions", "session", "chats":
		parseSessionsArgs(&parsedArgs, remaining)
		return CmdSessions, parsedArgs

	case "models", "model":
		return CmdModels, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "config":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
			parsedArgs.Raw = remaining[1:]
		}
		return CmdConfig, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown word: treat it as the start of an ask query so
		// `llmui what is a channel` does something sensible.
		parsedArgs.Raw = append([]string{cmd}, remaining...)
		parseAskArgs(&parsedArgs, parsedArgs.Raw)
		return CmdAsk, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "-m", "--model":
			if i+1 < len(args) {
				i++
				parsedArgs.Model = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseServeArgs parses serve-specific flags.
func parseServeArgs(args *Args, remaining []string) {
	parser := NewArgParser(remaining)
	args.Host = parser.Flag("host")
	args.Port = parser.FlagIntOrDefault("port", 0)
}

// parseAskArgs parses ask-specific flags and joins the rest into the query.
func parseAskArgs(args *Args, remaining []string) {
	var queryParts []string

	i := 0
	for i < len(remaining) {
		arg := remaining[i]
		switch arg {
		case "-f", "--file":
			if i+1 < len(remaining) {
				i++
				args.File = remaining[i]
			}
		default:
			if strings.HasPrefix(arg, "--file=") {
				args.File = strings.TrimPrefix(arg, "--file=")
			} else if !strings.HasPrefix(arg, "-") {
				queryParts = append(queryParts, arg)
			}
		}
		i++
	}

	args.Query = strings.Join(queryParts, " ")
}

// parseSessionsArgs parses sessions subcommand, target name and flags.
func parseSessionsArgs(args *Args, remaining []string) {
	parser := NewArgParser(remaining)
	args.Subcommand = parser.Subcommand()
	args.Format = parser.FlagOrDefault("format", "")
	args.Confirm = parser.BoolFlag("confirm")

	switch args.Subcommand {
	case "search":
		// Everything after "search" is the query
		args.Query = JoinPositionalArgs(parser, 1)
	default:
		args.Name = parser.Positional(1)
	}
}
