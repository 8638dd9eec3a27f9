package migrations

import (
	"context"
	"fmt"
	"log"

	"shop_ledger/internal/models"
	"shop_ledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RunMigrations creates or updates the tables for orders, customers and
// products. Existing rows are kept.
func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.Order{},
		&models.Customer{},
		&models.Product{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Println("Database migrations completed successfully!")
	return nil
}

// CatalogEntry is a product as it arrives from a catalog import, with the
// pack size still in free text.
type CatalogEntry struct {
	ProductID string
	Name      string
	Stock     string
	PackSize  string
}

var demoCatalog = []CatalogEntry{
	{ProductID: "rice-5kg", Name: "Basmati Rice", Stock: "40", PackSize: "5 kg"},
	{ProductID: "atta-1kg", Name: "Wheat Flour", Stock: "60", PackSize: "1000 gm"},
	{ProductID: "oil-1l", Name: "Sunflower Oil", Stock: "35", PackSize: "1 litre"},
	{ProductID: "tea-250", Name: "Tea Leaves", Stock: "80", PackSize: "250 gm"},
	{ProductID: "milk-500", Name: "Toned Milk", Stock: "120", PackSize: "500 ml"},
	{ProductID: "soap-box", Name: "Soap Bars", Stock: "25", PackSize: "12 pcs"},
}

// ImportCatalog parses each entry's pack size once and upserts it.
func ImportCatalog(ctx context.Context, products repository.ProductRepository, userID string, entries []CatalogEntry) error {
	for _, e := range entries {
		pack, err := models.ParsePackSize(e.PackSize)
		if err != nil {
			return fmt.Errorf("product %s: %w", e.ProductID, err)
		}
		stock, err := decimal.NewFromString(e.Stock)
		if err != nil {
			return fmt.Errorf("product %s: invalid stock %q: %w", e.ProductID, e.Stock, err)
		}
		if err := products.Upsert(ctx, &models.Product{
			UserID:    userID,
			ProductID: e.ProductID,
			Name:      e.Name,
			Quantity:  stock,
			PackSize:  pack,
		}); err != nil {
			return err
		}
	}
	return nil
}

// SeedDemoData loads a small catalog and one walk-in customer for userID.
func SeedDemoData(ctx context.Context, repos repository.Repositories, userID string) error {
	log.Printf("Seeding demo data for shop %s...", userID)

	if err := ImportCatalog(ctx, repos.Products(), userID, demoCatalog); err != nil {
		return fmt.Errorf("failed to import catalog: %w", err)
	}

	_, err := repos.Customers().Ensure(ctx, &models.Customer{
		UserID:     userID,
		CustomerID: "walk-in",
		Name:       "Walk-in Customer",
		Address:    "Counter",
		Contact:    "0000000000",
	})
	if err != nil {
		return fmt.Errorf("failed to create demo customer: %w", err)
	}

	log.Println("Demo data created successfully!")
	return nil
}
