// Command goosed serves the agent runtime over the minimal HTTP surface
// described in the external interfaces spec: create an agent, list
// versions/providers, and stream a reply as newline-delimited JSON.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/goose-agent/core/pkg/config"
	"github.com/goose-agent/core/pkg/goosed"
	"github.com/goose-agent/core/pkg/telemetry"
)

func main() {
	configPath := os.Getenv("GOOSE_CONFIG")
	if configPath == "" {
		configPath = "goosed.yaml"
	}

	cfg, err := config.Load(configPath, config.EnvSecretResolver{})
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	journalDir := os.Getenv("GOOSE_JOURNAL_DIR")
	if journalDir == "" {
		journalDir = "."
	}

	settings := telemetry.DefaultSettings().WithEnabled(os.Getenv("GOOSE_OTEL_ENABLED") == "true")

	manager := goosed.NewManager(cfg, journalDir, settings)
	router := goosed.NewRouter(manager)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("goosed listening on :%s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
