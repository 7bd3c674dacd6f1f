// Package main provides the user CLI entry point for testing the websocket
// endpoints the way an operator panel or browser client uses them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/coder/websocket"
	"github.com/joho/godotenv"
)

var (
	app    = kingpin.New("goalhorn-usercli", "goalhorn websocket client for testing")
	server = app.Flag("server", "Server address").Default("ws://localhost:8080").String()

	// send command
	sendCmd    = app.Command("send", "Send command tokens on the soundboard socket")
	sendPath   = sendCmd.Flag("path", "Soundboard socket path").Default("/soundboard").String()
	sendTokens = sendCmd.Arg("tokens", "Command tokens, sent in order").Required().Strings()
	sendDelay  = sendCmd.Flag("delay", "Pause between tokens").Default("0s").Duration()

	// subscribe command
	subscribeCmd  = app.Command("subscribe", "Print notifications from the client socket")
	subscribePath = subscribeCmd.Flag("path", "Client socket path").Default("/client").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case sendCmd.FullCommand():
		send(ctx, *sendPath, *sendTokens, *sendDelay)
	case subscribeCmd.FullCommand():
		subscribe(ctx, *subscribePath)
	}
}

func dial(ctx context.Context, path string) *websocket.Conn {
	url := strings.TrimRight(*server, "/") + path
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		fmt.Printf("Error: failed to connect to %s: %v\n", url, err)
		os.Exit(1)
	}
	return conn
}

func send(ctx context.Context, path string, tokens []string, delay time.Duration) {
	conn := dial(ctx, path)
	defer conn.CloseNow()

	for i, token := range tokens {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		if err := conn.Write(ctx, websocket.MessageText, []byte(token)); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sent %s\n", token)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func subscribe(ctx context.Context, path string) {
	conn := dial(ctx, path)
	defer conn.CloseNow()

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("\nUnsubscribing...")
				return
			}
			if status := websocket.CloseStatus(err); status != -1 {
				fmt.Printf("Connection closed by server: %v\n", status)
				return
			}
			fmt.Printf("Stream error: %v\n", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), string(data))
	}
}
