// llmui - a minimal browser chat UI for a local Ollama server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeranaias/llmui/internal/cli"
	"github.com/jeranaias/llmui/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	setupAppLog()

	command, args := cli.Parse()

	var err error
	switch command {
	case cli.CmdServe:
		err = cli.HandleServeCommand(args)
	case cli.CmdAsk:
		err = cli.HandleAskCommand(args)
	case cli.CmdChat:
		err = cli.HandleChatCommand(args)
	case cli.CmdSessions:
		err = cli.HandleSessionsCommand(args)
	case cli.CmdModels:
		err = cli.HandleModelsCommand(args)
	case cli.CmdStatus:
		err = cli.HandleStatusCommand(args)
	case cli.CmdConfig:
		err = cli.HandleConfigCommand(args)
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		cli.PrintUsage()
		os.Exit(cli.ExitUsageError)
	}

	if err != nil {
		cli.DisplayError(err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

// setupAppLog routes the standard logger to a rotating application log
// file. Interactive commands keep stdout/stderr for user output; anything
// written through the log package lands in the app log.
func setupAppLog() {
	cfg, err := config.Load()
	if err != nil {
		log.SetOutput(io.Discard)
		return
	}

	path, err := cfg.AppLogFile()
	if err != nil {
		log.SetOutput(io.Discard)
		return
	}

	log.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.Logging.AppLogMaxSizeMB,
		MaxBackups: cfg.Logging.AppLogMaxBackups,
		MaxAge:     cfg.Logging.AppLogMaxAgeDays,
		Compress:   true,
	})
	log.SetFlags(log.LstdFlags | log.LUTC)
}
