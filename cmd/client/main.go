package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"driftpad/internal/client"
	"driftpad/internal/note"
)

func main() {
	if err := run(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	serverURL := flag.String("server", "ws://localhost:8790/sync", "sync endpoint to connect to")
	cachePath := flag.String("cache", "driftpad-cache.sqlite3", "local note cache file")
	flag.Parse()

	cache, err := client.OpenCache(*cachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	dialer := client.NewDialer(*serverURL)
	agent := client.NewAgent(dialer, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := dialer.Run(ctx, agent); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("sync stopped", "err", err)
		}
	}()

	fmt.Println("commands: ls | add | edit <id> <text> | rm <id> | status | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "ls":
			printNotes(agent.Notes())
		case "add":
			n := agent.Create()
			fmt.Printf("created %s\n", n.ID)
		case "edit":
			id, text, ok := strings.Cut(rest, " ")
			if !ok {
				fmt.Println("usage: edit <id> <text>")
				continue
			}
			if err := editNote(agent, id, text); err != nil {
				fmt.Println(err)
			}
		case "rm":
			if err := removeNote(agent, strings.TrimSpace(rest)); err != nil {
				fmt.Println(err)
			}
		case "status":
			if agent.Connected() {
				fmt.Println("online")
			} else {
				fmt.Println("offline (edits are saved locally and sync on reconnect)")
			}
		case "quit", "exit":
			return nil
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func printNotes(notes []note.Note) {
	if len(notes) == 0 {
		fmt.Println("no notes")
		return
	}
	for _, n := range note.SortByID(notes) {
		fmt.Printf("%s  %s\n", n.ID, n.Content)
	}
}

// resolveID accepts a full id or an unambiguous prefix.
func resolveID(agent *client.Agent, id string) (string, error) {
	var match string
	for _, n := range agent.Notes() {
		if n.ID == id {
			return id, nil
		}
		if strings.HasPrefix(n.ID, id) {
			if match != "" {
				return "", fmt.Errorf("ambiguous id prefix %q", id)
			}
			match = n.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no note with id %q", id)
	}
	return match, nil
}

func editNote(agent *client.Agent, id, text string) error {
	full, err := resolveID(agent, id)
	if err != nil {
		return err
	}
	return agent.Update(full, text)
}

func removeNote(agent *client.Agent, id string) error {
	full, err := resolveID(agent, id)
	if err != nil {
		return err
	}
	return agent.Delete(full)
}
