// Package main provides the qudi-config CLI tool.
//
// Usage:
//
//	qudi-config <command> [arguments]
//
// Commands:
//
//	show        Load a config file and print it to stdout
//	roundtrip   Verify that a config file survives a load/dump/load cycle
//	help        Show help for a command
//	version     Show version information
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Bienpang/qudi"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "show":
		if err := runShow(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "roundtrip":
		if err := runRoundtrip(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("qudi-config version %s\n", version)
	case "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

// runShow loads a config file and dumps it to stdout. Arrays print as
// inline blobs since stdout has no sibling directory.
func runShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: qudi-config show <file>")
	}
	doc, err := qudi.Load(args[0])
	if err != nil {
		return err
	}
	return qudi.DumpStream(os.Stdout, doc)
}

// runRoundtrip loads a config file, dumps it to memory, loads the dump
// again, and compares the two documents.
func runRoundtrip(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: qudi-config roundtrip <file>")
	}
	path := args[0]

	doc, err := qudi.Load(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := qudi.DumpStream(&buf, doc); err != nil {
		return fmt.Errorf("dump failed: %w", err)
	}

	reloaded, err := qudi.LoadStream(&buf)
	if err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}

	if !doc.Equal(reloaded) {
		return fmt.Errorf("%s: document changed across a load/dump/load cycle", path)
	}
	fmt.Printf("%s: round trip ok (%d top-level keys)\n", path, doc.Len())
	return nil
}

func printUsage() {
	fmt.Println(`qudi-config - configuration file inspection tool

Usage:
  qudi-config <command> [arguments]

Commands:
  show <file>        Load a config file and print it to stdout
  roundtrip <file>   Verify that a config file survives load/dump/load
  help               Show this help
  version            Show version information`)
}
