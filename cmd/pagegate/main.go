// Command pagegate runs the permission-gated MCP proxy for a Notion
// workspace and manages its user directory.
package main

import (
	"fmt"
	"os"
)

// version is stamped at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "users":
		err = runUsers(os.Args[2:])
	case "audit":
		err = runAudit(os.Args[2:])
	case "version":
		fmt.Printf("pagegate %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`pagegate - permission-gated MCP proxy for a Notion workspace

Usage:
  pagegate serve [flags]          Start the gateway server
  pagegate users <subcommand>     Manage the user directory
  pagegate audit [flags]          Show recent audit entries
  pagegate version                Print the version

Users subcommands:
  users add <name>                      Create a user with a fresh API key
  users list                            List all users
  users remove <api-key>                Remove a user
  users set-pages <api-key> [id ...]    Set the page allow-list (empty = unrestricted)
  users set-databases <api-key> [id ...] Set the database allow-list (empty = unrestricted)

Run "pagegate serve -h" or "pagegate audit -h" for flags.
`)
}
