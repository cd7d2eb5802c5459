package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blockedby/tg-relay/internal/config"
	"github.com/blockedby/tg-relay/internal/logger"
	"github.com/blockedby/tg-relay/internal/telegram"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: tg-resolve @channel [@another ...]")
		fmt.Println("prints the ids to use with /source and /dest")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Options{Level: "warn"}); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	manager := telegram.NewManager(cfg, nil)
	manager.SetClientFactory(telegram.NewEphemeralBotClient)
	if err := manager.Init(ctx); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	defer manager.Stop()

	client := telegram.NewClient(manager)

	fmt.Printf("%-32s | %s\n", "channel", "id")
	fmt.Println(strings.Repeat("-", 52))

	failed := false
	for _, arg := range os.Args[1:] {
		username := strings.TrimPrefix(strings.TrimPrefix(arg, "https://t.me/"), "@")
		id, err := client.ResolveUsername(ctx, username)
		if err != nil {
			fmt.Printf("%-32s | error: %v\n", "@"+username, err)
			failed = true
			continue
		}
		fmt.Printf("%-32s | %d\n", "@"+username, id)
	}

	if failed {
		os.Exit(1)
	}
}
