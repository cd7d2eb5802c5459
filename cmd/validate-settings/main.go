package main

import (
	"fmt"
	"os"

	"github.com/blockedby/tg-relay/internal/settings"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: validate-settings seed.yaml [more.yaml ...]")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		s, err := settings.LoadSeed(path)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("✅ %s is valid (%d destinations, range set: %t)\n",
			path, len(s.DestinationIDs), s.StartLink != "")
	}

	if failed {
		os.Exit(1)
	}
}
