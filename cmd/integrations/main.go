// Command integrations is a small operator tool for the credential
// records the engine reads: set or disable one backend's API key.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/config"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/database"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/repository/postgres"
)

func main() {
	name := flag.String("name", "", "integration name (provider id)")
	apiKey := flag.String("key", "", "API key")
	model := flag.String("model", "", "optional model override")
	disable := flag.Bool("disable", false, "disable the integration")
	flag.Parse()

	if *name == "" {
		log.Fatal("-name is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatal("failed to run migrations: ", err)
	}

	record := &providers.Integration{
		Name:    *name,
		Enabled: !*disable,
		APIKey:  *apiKey,
	}
	if *model != "" {
		raw, _ := json.Marshal(map[string]string{"model": *model})
		record.Config = raw
	}

	repo := postgres.NewIntegrationRepository(db.DB)
	if err := repo.Upsert(context.Background(), record); err != nil {
		log.Fatal("failed to upsert integration: ", err)
	}

	log.Printf("integration %q updated (enabled=%v)", *name, record.Enabled)
}
