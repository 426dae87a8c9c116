package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pagegate/pagegate/pkg/access"
	"github.com/pagegate/pagegate/pkg/directory"
)

func runUsers(args []string) error {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	usersPath := fs.String("users", defaultUsersPath(), "path to users file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("users: missing subcommand (add|list|remove|set-pages|set-databases)")
	}

	store, err := directory.Open(*usersPath)
	if err != nil {
		return err
	}

	switch rest[0] {
	case "add":
		if len(rest) != 2 {
			return fmt.Errorf("usage: pagegate users add <name>")
		}
		u, err := store.AddUser(rest[1])
		if err != nil {
			return err
		}
		fmt.Printf("Created user %q\n", u.Name)
		fmt.Printf("API key: %s\n", u.APIKey)
		fmt.Println("Access: unrestricted (edit with set-pages / set-databases)")
		return nil

	case "list":
		users := store.Users()
		if len(users) == 0 {
			fmt.Println("No users.")
			return nil
		}
		for _, u := range users {
			fmt.Printf("%s\n", u.Name)
			fmt.Printf("  key:       %s\n", u.APIKey)
			fmt.Printf("  pages:     %s\n", describeList(u.Permissions.AllowedPages))
			fmt.Printf("  databases: %s\n", describeList(u.Permissions.AllowedDatabases))
			fmt.Printf("  created:   %s\n", u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil

	case "remove":
		if len(rest) != 2 {
			return fmt.Errorf("usage: pagegate users remove <api-key>")
		}
		if err := store.RemoveUser(rest[1]); err != nil {
			return err
		}
		fmt.Println("User removed.")
		return nil

	case "set-pages":
		if len(rest) < 2 {
			return fmt.Errorf("usage: pagegate users set-pages <api-key> [page-id ...]")
		}
		if err := store.SetAllowList(rest[1], access.KindPage, rest[2:]); err != nil {
			return err
		}
		fmt.Printf("Page allow-list set: %s\n", describeList(rest[2:]))
		return nil

	case "set-databases":
		if len(rest) < 2 {
			return fmt.Errorf("usage: pagegate users set-databases <api-key> [database-id ...]")
		}
		if err := store.SetAllowList(rest[1], access.KindDatabase, rest[2:]); err != nil {
			return err
		}
		fmt.Printf("Database allow-list set: %s\n", describeList(rest[2:]))
		return nil

	default:
		return fmt.Errorf("users: unknown subcommand %q", rest[0])
	}
}

func describeList(ids []string) string {
	if len(ids) == 0 {
		return "unrestricted"
	}
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

func defaultUsersPath() string {
	if v := os.Getenv("PAGEGATE_USERS_FILE"); v != "" {
		return v
	}
	return "users.json"
}
