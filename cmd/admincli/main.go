// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/chzyer/readline"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/goalhorn/internal/api/connect"
)

var (
	app     = kingpin.New("goalhorn-admincli", "goalhorn soundboard admin client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "Admin token (or set GOALHORN_ADMIN_TOKEN env)").Envar("GOALHORN_ADMIN_TOKEN").String()
	timeout = app.Flag("timeout", "Request timeout").Default("5s").Duration()

	// trigger command
	triggerCmd   = app.Command("trigger", "Dispatch a command token")
	triggerToken = triggerCmd.Arg("token", "Command token, e.g. goal_push_panthers").Required().String()

	// status command
	statusCmd = app.Command("status", "Show slot states")

	// console command
	consoleCmd = app.Command("console", "Interactive prompt; each line is dispatched as a command token")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or GOALHORN_ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewAdminClient(http.DefaultClient, *server, *token)

	switch command {
	case triggerCmd.FullCommand():
		trigger(client, *triggerToken)
	case statusCmd.FullCommand():
		status(client)
	case consoleCmd.FullCommand():
		console(client)
	}
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), *timeout)
}

func trigger(client *apiconnect.AdminClient, cmd string) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := client.Dispatch(ctx, cmd); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Dispatched %s\n", cmd)
}

func status(client *apiconnect.AdminClient) {
	ctx, cancel := requestContext()
	defer cancel()
	s, err := client.GetStatus(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printStatus(os.Stdout, s)
}

func printStatus(w io.Writer, s map[string]any) {
	fmt.Fprintln(w, "\n=== SOUNDBOARD STATUS ===")
	fmt.Fprintf(w, "Continuous loop engaged: %v\n", s["loop_engaged"])
	fmt.Fprintf(w, "Observers: %v\n", s["observers"])

	fmt.Fprintln(w, "\nSlots:")
	slots, _ := s["slots"].([]any)
	for _, raw := range slots {
		slot, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %-16v %-11v gain=%6.1fdB clip=%v", slot["name"], slot["state"], slot["gain_db"], slot["clip"])
		if usable, _ := slot["usable"].(bool); !usable {
			line += " [UNUSABLE]"
		}
		if fading, _ := slot["fading"].(bool); fading {
			line += " [FADING]"
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\nCommands: %s\n\n", strings.Join(commandTokens(s), ", "))
}

func commandTokens(s map[string]any) []string {
	raw, _ := s["commands"].([]any)
	tokens := make([]string, 0, len(raw))
	for _, v := range raw {
		if t, ok := v.(string); ok {
			tokens = append(tokens, t)
		}
	}
	sort.Strings(tokens)
	return tokens
}

func console(client *apiconnect.AdminClient) {
	var tokens []string
	ctx, cancel := requestContext()
	if s, err := client.GetStatus(ctx); err == nil {
		tokens = commandTokens(s)
	} else {
		fmt.Printf("Warning: could not fetch commands for completion: %v\n", err)
	}
	cancel()

	rl, err := readline.NewEx(&readline.Config{
		Prompt: "goalhorn> ",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItemDynamic(func(line string) []string {
				return append([]string{"status", "quit"}, tokens...)
			}),
		),
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("Type a command token to dispatch it, 'status' to show slots, 'quit' to exit.")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if line == "" {
				return
			}
			continue
		}
		if err != nil {
			return
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			return
		case "status":
			ctx, cancel := requestContext()
			s, err := client.GetStatus(ctx)
			cancel()
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printStatus(os.Stdout, s)
		default:
			start := time.Now()
			ctx, cancel := requestContext()
			err := client.Dispatch(ctx, line)
			cancel()
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Printf("Dispatched %s (%v)\n", line, time.Since(start).Round(time.Millisecond))
		}
	}
}
