// Package main is the entry point for the buildermatch server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal. Its job is to:
//  1. Read configuration (flags, env vars, an optional config file)
//  2. Create dependencies (logger, database connections, etc.)
//  3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, ...).
//
// COMMANDS:
//
//	buildermatch serve                 start the HTTP server
//	buildermatch migrate up|down|version
//
// Flags, BUILDERMATCH_* environment variables and the config file all feed
// one viper instance; see internal/config for the precedence rules.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
