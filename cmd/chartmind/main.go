// Command chartmind answers a single natural-language question against the
// platform store from the terminal. It wires the full stack (config, logger,
// dbpool, stores, chat model, tool registry, orchestration loop) the same way
// an embedding application would.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"chartmind/config"
	"chartmind/dbpool"
	"chartmind/logger"
	"chartmind/orchestrator"
	"chartmind/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath     = flag.String("config", defaultConfigPath(), "path to the config file")
		teamID         = flag.String("team", "", "team id to run under (required)")
		userID         = flag.String("user", "cli", "user id recorded on the conversation")
		conversationID = flag.String("conversation", "", "continue an existing conversation")
	)
	flag.Parse()

	if *teamID == "" {
		return fmt.Errorf("-team is required")
	}
	question := flag.Arg(0)
	if question == "" {
		return fmt.Errorf("usage: chartmind -team <id> [flags] \"question\"")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(*configPath)
	}

	log := logger.NewLogger()
	if err := log.Init(cfg.DataDir); err != nil {
		return err
	}
	defer log.Close()

	manager := dbpool.New(dbpool.EngineSQLite, log.Log)
	db, err := store.InitDB(cfg.DataDir, manager)
	if err != nil {
		return err
	}
	defer db.Close()

	platform := store.NewPlatform(db, log.Log)
	conversations := store.NewConversations(db, log.Log)
	runner := store.NewRunner(manager, log.Log)

	ctx := context.Background()
	chatModel, err := orchestrator.NewChatModel(ctx, cfg, log.Log)
	if err != nil {
		return err
	}

	registry := orchestrator.NewRegistry(log.Log)
	for _, t := range orchestrator.DefaultTools(platform, runner, cfg, log.Log) {
		if err := registry.Register(ctx, t); err != nil {
			return err
		}
	}

	emitter := orchestrator.NewEmitter(func(conversationID, eventType string, data map[string]interface{}) {
		fmt.Printf("  [%s] %v\n", eventType, data["message"])
	}, log.Log)

	orch := orchestrator.New(chatModel, cfg.ModelName,
		registry, orchestrator.NewSemanticLayerBuilder(platform, log.Log),
		emitter, cfg.MaxIterations, log.Log)
	service := orchestrator.NewService(orch, conversations, log.Log)

	result, conv, err := service.Ask(ctx, *teamID, *userID, *conversationID, question, nil,
		func(toolName, phase, message string) {
			fmt.Printf("  [%s] %s\n", toolName, message)
		})
	if err != nil {
		return err
	}

	if result.NeedsUserInput {
		fmt.Println(result.Prompt)
		for _, opt := range result.Options {
			fmt.Printf("  - %s (%s)\n", opt.Label, opt.Value)
		}
	} else {
		fmt.Println(result.Message)
	}
	fmt.Printf("\nconversation: %s  (iterations: %d, tokens: %d)\n",
		conv.ID, result.Iterations, result.Usage.TotalTokens)
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chartmind.json"
	}
	return filepath.Join(home, ".chartmind", "config.json")
}
