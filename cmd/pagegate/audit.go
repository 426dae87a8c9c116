package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pagegate/pagegate/pkg/audit"
)

func runAudit(args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dbPath := fs.String("db", defaultAuditPath(), "path to audit database")
	limit := fs.Int("limit", 50, "number of entries to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := audit.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(*limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No audit entries.")
		return nil
	}

	for _, e := range entries {
		resource := e.Resource
		if resource == "" {
			resource = "-"
		}
		fmt.Printf("%s  %-7s  %-22s  %-36s  user=%s session=%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Decision, e.Tool, resource, e.User, e.SessionID)
	}
	return nil
}

func defaultAuditPath() string {
	if v := os.Getenv("PAGEGATE_AUDIT_DB"); v != "" {
		return v
	}
	return "audit.db"
}
