package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lk2023060901/agentic-gateway/internal/auth"
	"github.com/lk2023060901/agentic-gateway/internal/conf"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "config file path")
	subject := flag.String("subject", "", "token subject (required)")
	scope := flag.String("scope", "", "optional scope claim")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to auth.token_ttl")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "-subject is required")
		flag.Usage()
		os.Exit(2)
	}

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	authCfg := config.Auth
	if *ttl > 0 {
		authCfg.TokenTTL = *ttl
	}

	manager, err := auth.NewJWTManager(&authCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create jwt manager (is JWT_SECRET set?): %v\n", err)
		os.Exit(1)
	}

	token, err := manager.GenerateToken(*subject, *scope)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Now().Add(manager.TTL()).Format(time.RFC3339))
}
