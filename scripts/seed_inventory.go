package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/export"
	"staybook/internal/models"
	"staybook/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type SeedConfig struct {
	Accommodations []models.AccommodationSeed `yaml:"accommodations"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		seedPath   = flag.String("seed", "configs/inventory.yaml", "path to inventory.yaml")
		dbPath     = flag.String("db", "", "path to sqlite db, overrides config")
		snapshot   = flag.Bool("export", false, "write an xlsx snapshot of reservations after seeding")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seeds SeedConfig
	if err = yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if len(seeds.Accommodations) == 0 {
		return fmt.Errorf("no accommodations in yaml")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger, database.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accommodations, rooms, err := service.NewInventoryService(db, &logger).Seed(ctx, seeds.Accommodations)
	if err != nil {
		return err
	}
	fmt.Printf("done: accommodations=%d rooms=%d\n", accommodations, rooms)

	if !*snapshot {
		return nil
	}
	views, err := db.ListReservationViews(ctx)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}
	path, err := export.Save(cfg.Exports.Path, views, time.Now())
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Printf("snapshot: %s\n", path)
	return nil
}
