// Command chessctl is a terminal client for the chess room server.
// It joins a room, prints every server frame as it arrives, and reads
// moves from stdin ("e2 e4", optionally "e7 e8 queen"), plus the
// commands "reset" and "quit".
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/kushgarg132/Chess/client"
	"github.com/kushgarg132/Chess/domain"
)

func main() {
	cmd := &cli.Command{
		Name:  "chessctl",
		Usage: "play chess against a remote opponent from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8080", Usage: "server base URL"},
			&cli.StringFlag{Name: "room", Required: true, Usage: "room identifier to join"},
			&cli.StringFlag{Name: "name", Value: "anonymous", Usage: "display name"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cl := client.New(client.Config{
		URL:    cmd.String("url"),
		RoomID: cmd.String("room"),
		Name:   cmd.String("name"),
	})

	go func() {
		if err := cl.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("connection failed", "error", err)
			stop()
		}
	}()

	go printFrames(cl)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("joined room %q as %q; enter moves like \"e2 e4\"\n", cmd.String("room"), cmd.String("name"))
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		if done := handleLine(cl, scanner.Text()); done {
			break
		}
	}
	return scanner.Err()
}

func printFrames(cl *client.Client) {
	for msg := range cl.Messages() {
		switch msg.Type {
		case domain.TypeGameState:
			fmt.Printf("you are %s | turn: %s\n%s\n", msg.Role, msg.Turn, msg.BoardFEN)
		case domain.TypeMove:
			fmt.Printf("turn: %s\n%s\n", msg.Turn, msg.BoardFEN)
		case domain.TypeMessage:
			fmt.Println(msg.Content)
		case domain.TypeError:
			fmt.Println("rejected:", msg.Content)
		}
	}
}

func handleLine(cl *client.Client, line string) (done bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "quit", "exit":
		return true
	case "reset":
		err = cl.Reset()
	default:
		if len(fields) < 2 {
			fmt.Println("usage: <from> <to> [promotion]")
			return false
		}
		promotion := ""
		if len(fields) > 2 {
			promotion = strings.ToUpper(fields[2])
		}
		err = cl.Move(fields[0], fields[1], promotion)
	}
	if err != nil {
		fmt.Println("send failed:", err)
	}
	return false
}
