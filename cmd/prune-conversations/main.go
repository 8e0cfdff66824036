package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/lk2023060901/agentic-gateway/internal/conf"
	"github.com/lk2023060901/agentic-gateway/internal/data"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	respdata "github.com/lk2023060901/agentic-gateway/internal/responses/data"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "config file path")
	olderThan := flag.Duration("older-than", 30*24*time.Hour, "prune conversations with no message newer than this")
	dryRun := flag.Bool("dry-run", false, "only print statistics")
	flag.Parse()

	if *olderThan <= 0 {
		log.Fatalf("-older-than must be positive")
	}

	cfg, err := conf.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// 清理工具不连接 Redis
	cfg.Redis.Enabled = false
	cfg.Log.Level = "warn"

	zl, err := logger.New(&cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	d, cleanup, err := data.NewData(cfg, zl)
	if err != nil {
		log.Fatalf("failed to init data layer: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	repo := respdata.NewResponseRepo(d.DB)
	cutoff := time.Now().Add(-*olderThan)

	fmt.Println("==========================================")
	fmt.Printf("Pruning conversations inactive since %s\n", cutoff.UTC().Format(time.RFC3339))
	fmt.Println("==========================================")

	printStats(ctx, repo, "before")
	if *dryRun {
		fmt.Println("dry run, nothing deleted")
		return
	}

	chats, messages, err := repo.PruneBefore(ctx, cutoff)
	if err != nil {
		log.Fatalf("failed to prune: %v", err)
	}
	fmt.Printf("deleted %d chats and %d messages\n", chats, messages)

	printStats(ctx, repo, "after")
}

func printStats(ctx context.Context, repo *respdata.ResponseRepo, label string) {
	chats, messages, err := repo.Stats(ctx)
	if err != nil {
		log.Fatalf("failed to read statistics: %v", err)
	}
	fmt.Printf("[%s] chats: %d, messages: %d\n", label, chats, messages)
}
