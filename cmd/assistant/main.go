// Package main is a terminal client for the query assistant gateway.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/searchlens-ai/query-assistant/internal/chat"
	"github.com/searchlens-ai/query-assistant/internal/config"
	"github.com/searchlens-ai/query-assistant/internal/store"
	"github.com/searchlens-ai/query-assistant/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	kv, err := store.OpenBadger(store.BadgerConfig{
		Path:       cfg.StorePath,
		SyncWrites: true,
	})
	if err != nil {
		log.Error("failed to open conversation store", zap.Error(err))
		os.Exit(1)
	}
	defer kv.Close()

	st := store.New(kv, cfg.StoreNamespace, log)
	client := chat.NewClient(cfg.GatewayURL, log)
	session := chat.NewSession(client, st, cfg.AutoRegenerate, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("query assistant (/clear starts a new conversation, /quit exits)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit":
			return
		case "/clear":
			session.Clear()
			fmt.Println("started a new conversation")
			continue
		}

		result, err := session.SendMessage(ctx, line, chat.SendOptions{IncludeContext: true})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		if result.Message != nil {
			fmt.Println(result.Message.Content)
		}
		if result.ErrorMessage != "" {
			fmt.Println(result.ErrorMessage)
		}
	}
}
