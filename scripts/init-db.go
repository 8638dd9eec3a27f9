package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"shop_ledger/internal/config"
	"shop_ledger/internal/database"
	"shop_ledger/internal/migrations"
	"shop_ledger/internal/repository"
	"shop_ledger/internal/services"
)

func main() {
	shop := flag.String("shop", "demo-shop", "userId of the shop to seed")
	seed := flag.Bool("seed", true, "load the demo catalog and customer")
	adminKey := flag.String("hash-admin-key", "", "print the ADMIN_KEY_HASH for this key and exit")
	flag.Parse()

	if *adminKey != "" {
		hash, err := services.HashAdminKey(*adminKey, 0)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("ADMIN_KEY_HASH=%s\n", hash)
		return
	}

	fmt.Println("Initializing database...")

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, database.Options{LogLevel: cfg.DBLogLevel})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	if *seed {
		uow := repository.NewUnitOfWork(db)
		err := uow.WithinTx(context.Background(), func(r repository.Repositories) error {
			return migrations.SeedDemoData(context.Background(), r, *shop)
		})
		if err != nil {
			log.Fatal("Failed to seed demo data:", err)
		}
	}

	fmt.Println("Database initialized successfully!")
}
