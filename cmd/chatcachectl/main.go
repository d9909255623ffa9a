package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pserra/chatcache/bus"
	"github.com/pserra/chatcache/cache"
	"github.com/pserra/chatcache/internal/cachedir"
	"github.com/pserra/chatcache/internal/lock"
	"github.com/pserra/chatcache/record"
	"github.com/pserra/chatcache/store"
	"go.uber.org/zap"
)

func main() {
	cacheFlag := flag.String("cache", "", "cache name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	cacheName := cachedir.Resolve(*cacheFlag)
	if err := cachedir.ValidateName(cacheName); err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	lk, err := lock.Acquire(cachedir.Dir(cacheName))
	if err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			fmt.Fprintf(os.Stderr, "error: cache %q is in use: %v\n", cacheName, err)
			os.Exit(1)
		}
		fatal(err)
	}
	defer func() { _ = lk.Release() }()

	db, err := store.Open(cachedir.DBPath(cacheName))
	if err != nil {
		fatal(err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		fatal(err)
	}

	c := cache.NewController(db, bus.New(), zap.NewNop())

	switch args[0] {
	case "stats":
		cmdStats(db, cacheName, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatcachectl messages <list|search> ...")
			os.Exit(1)
		}
		cmdMessages(c, args[1], args[2:], *jsonFlag)
	case "ops":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatcachectl ops <list|retry|cancel> ...")
			os.Exit(1)
		}
		cmdOps(c, args[1], args[2:], *jsonFlag)
	case "participants":
		if len(args) >= 2 && args[1] == "list" {
			cmdParticipantsList(c, *jsonFlag)
		} else {
			fmt.Fprintln(os.Stderr, "usage: chatcachectl participants list")
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatcachectl [--cache <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  stats                         Show cache row counts")
	fmt.Fprintln(os.Stderr, "  messages list <conv>          List cached messages of a conversation")
	fmt.Fprintln(os.Stderr, "  messages search <term>        Full-text search over cached messages")
	fmt.Fprintln(os.Stderr, "  ops list [conv]               List outstanding message operations")
	fmt.Fprintln(os.Stderr, "  ops retry <op-id>             Requeue a failed operation as pending")
	fmt.Fprintln(os.Stderr, "  ops cancel <op-id>            Abandon an operation")
	fmt.Fprintln(os.Stderr, "  participants list             List cached participant profiles")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdStats(db *store.Store, cacheName string, jsonOut bool) {
	msgs, err := db.MessageCount()
	if err != nil {
		fatal(err)
	}
	ops, err := db.OperationCount()
	if err != nil {
		fatal(err)
	}
	ps, err := db.ParticipantCount()
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(map[string]any{
			"cache":        cacheName,
			"messages":     msgs,
			"operations":   ops,
			"participants": ps,
		})
		return
	}
	fmt.Printf("Cache:        %s\n", cacheName)
	fmt.Printf("Messages:     %d\n", msgs)
	fmt.Printf("Operations:   %d\n", ops)
	fmt.Printf("Participants: %d\n", ps)
}

func cmdMessages(c *cache.Controller, subcmd string, args []string, jsonOut bool) {
	switch subcmd {
	case "list":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "usage: chatcachectl messages list <conversation-id>")
			os.Exit(1)
		}
		msgs, err := c.FetchMessages(args[0], 50, time.Time{}, record.ByCreationTime)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(msgs)
			return
		}
		if len(msgs) == 0 {
			fmt.Println("No cached messages.")
			return
		}
		for _, m := range msgs {
			fmt.Printf("%s  %-8s  %-10s  %s\n",
				m.CreatedAt.Format(time.RFC3339), m.SyncStatus, m.CreatorID, m.Body)
		}
	case "search":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "usage: chatcachectl messages search <term>")
			os.Exit(1)
		}
		results, err := c.SearchMessages(args[0], "", 50)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(results)
			return
		}
		if len(results) == 0 {
			fmt.Println("No matches.")
			return
		}
		for _, r := range results {
			fmt.Printf("%-36s  %s\n", r.Message.ID, r.Snippet)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown messages subcommand: %s\n", subcmd)
		os.Exit(1)
	}
}

func cmdOps(c *cache.Controller, subcmd string, args []string, jsonOut bool) {
	switch subcmd {
	case "list":
		conversationID := ""
		if len(args) > 0 {
			conversationID = args[0]
		}
		ops, err := c.FetchMessageOperations(conversationID, "", 100)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(ops)
			return
		}
		if len(ops) == 0 {
			fmt.Println("No outstanding operations.")
			return
		}
		for _, op := range ops {
			line := fmt.Sprintf("%-36s  %-6s  %-7s  %s", op.ID, op.Type, op.Status, op.SendDate.Format(time.RFC3339))
			if op.Error != "" {
				line += "  " + op.Error
			}
			fmt.Println(line)
		}
	case "retry":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "usage: chatcachectl ops retry <operation-id>")
			os.Exit(1)
		}
		op := mustOperation(c, args[0])
		next, err := c.RetryMessageOperation(op)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Operation %s replaced by pending operation %s.\n", op.ID, next.ID)
	case "cancel":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "usage: chatcachectl ops cancel <operation-id>")
			os.Exit(1)
		}
		op := mustOperation(c, args[0])
		if err := c.DidCancelMessageOperation(op); err != nil {
			fatal(err)
		}
		fmt.Printf("Operation %s cancelled.\n", op.ID)
	default:
		fmt.Fprintf(os.Stderr, "unknown ops subcommand: %s\n", subcmd)
		os.Exit(1)
	}
}

func mustOperation(c *cache.Controller, id string) *record.MessageOperation {
	op, err := c.FetchMessageOperation(id)
	if err != nil {
		fatal(err)
	}
	if op == nil {
		fmt.Fprintf(os.Stderr, "error: no operation %q\n", id)
		os.Exit(1)
	}
	return op
}

func cmdParticipantsList(c *cache.Controller, jsonOut bool) {
	ps, err := c.FetchParticipants(nil)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(ps)
		return
	}
	if len(ps) == 0 {
		fmt.Println("No cached participants.")
		return
	}
	for _, p := range ps {
		fmt.Printf("%-36s  %s\n", p.ID, p.Name)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
