// cmd/finch/main.go
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

const version = "0.4.0"

// Build variables - can be set during build with ldflags
var (
	gitCommit = "unknown"
)

// Command aliases mapping
var commandAliases = map[string]string{
	"s": "stress",
	"m": "monitor",
	"v": "version",
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	if full, ok := commandAliases[command]; ok {
		command = full
	}

	switch command {
	case "stress":
		if err := runStress(os.Args[2:], false); err != nil {
			fail(err)
		}
	case "monitor":
		if err := runStress(os.Args[2:], true); err != nil {
			fail(err)
		}
	case "version", "--version":
		fmt.Printf("finch %s (%s)\n", version, gitCommit)
	case "help", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%serror:%s %v\n", colorRed(), colorReset(), err)
	os.Exit(1)
}

func colorized() bool {
	return isatty.IsTerminal(os.Stderr.Fd())
}

func colorRed() string {
	if colorized() {
		return "\033[31m"
	}
	return ""
}

func colorGreen() string {
	if colorized() {
		return "\033[32m"
	}
	return ""
}

func colorReset() string {
	if colorized() {
		return "\033[0m"
	}
	return ""
}

func printUsage() {
	fmt.Println(`finch - heap runtime diagnostics

Usage:
  finch <command> [flags]

Commands:
  stress   (s)  Drive the heap through allocation churn and report GC stats
  monitor  (m)  Run stress with a live websocket stats endpoint attached
  version  (v)  Print version information

Run 'finch <command> -h' for command flags.`)
}
