package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout loaded by the seed command.
type SeedFile struct {
	Items      []models.CatalogItem `yaml:"items"`
	Slots      []SeedSlot           `yaml:"slots"`
	FlashSales []models.FlashSale   `yaml:"flash_sales"`
	Orders     []SeedOrder          `yaml:"orders"`
}

// SeedSlot carries the slot date as YYYY-MM-DD text.
type SeedSlot struct {
	models.Slot `yaml:",inline"`
	Date        string `yaml:"date"`
}

// SeedOrder mirrors models.RawOrder, including the legacy price columns.
type SeedOrder struct {
	Reference      string    `yaml:"reference"`
	Kind           string    `yaml:"kind"`
	ItemID         int64     `yaml:"item_id"`
	Title          string    `yaml:"title"`
	UserID         string    `yaml:"user_id"`
	Email          string    `yaml:"email"`
	AmountPaid     *int64    `yaml:"amount_paid"`
	Price          *int64    `yaml:"price"`
	OriginalAmount *int64    `yaml:"original_amount"`
	Currency       string    `yaml:"currency"`
	Status         string    `yaml:"status"`
	FlashSaleTitle string    `yaml:"flash_sale_title"`
	CreatedAt      time.Time `yaml:"created_at"`
}

type seedStats struct {
	items, slots, flashSales, orders int
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
		seedPath = flag.String("file", "configs/seed.yaml", "path to seed yaml")
		dbPath   = flag.String("db", "./data/learnhub.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	file, err := parseSeed(data)
	if err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := seed(ctx, db, file)
	if err != nil {
		return err
	}

	logger.Info().
		Int("items", stats.items).
		Int("slots", stats.slots).
		Int("flash_sales", stats.flashSales).
		Int("orders", stats.orders).
		Msg("seed completed")
	return nil
}

func parseSeed(data []byte) (*SeedFile, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(file.Items)+len(file.Slots)+len(file.FlashSales)+len(file.Orders) == 0 {
		return nil, fmt.Errorf("seed file is empty")
	}
	return &file, nil
}

// seed writes items first so flash sale entries and orders can refer to them.
func seed(ctx context.Context, db *database.DB, file *SeedFile) (seedStats, error) {
	var stats seedStats

	for i := range file.Items {
		item := &file.Items[i]
		if err := item.Validate(); err != nil {
			return stats, fmt.Errorf("item %d: %w", item.ID, err)
		}
		if err := db.UpsertCatalogItem(ctx, item); err != nil {
			return stats, fmt.Errorf("upsert item %d: %w", item.ID, err)
		}
		stats.items++
	}

	for i := range file.Slots {
		entry := &file.Slots[i]
		date, err := models.ParseDate(entry.Date)
		if err != nil {
			return stats, fmt.Errorf("slot %q: %w", entry.Title, err)
		}
		slot := entry.Slot
		slot.Date = date
		if err := slot.Validate(); err != nil {
			return stats, fmt.Errorf("slot %q: %w", slot.Title, err)
		}
		if err := db.CreateSlot(ctx, &slot); err != nil {
			return stats, fmt.Errorf("create slot %q: %w", slot.Title, err)
		}
		stats.slots++
	}

	for i := range file.FlashSales {
		sale := &file.FlashSales[i]
		if err := sale.Validate(); err != nil {
			return stats, fmt.Errorf("flash sale %q: %w", sale.Title, err)
		}
		if err := db.CreateFlashSale(ctx, sale); err != nil {
			return stats, fmt.Errorf("create flash sale %q: %w", sale.Title, err)
		}
		stats.flashSales++
	}

	for i := range file.Orders {
		o := file.Orders[i]
		raw := &models.RawOrder{
			Reference:      o.Reference,
			Kind:           o.Kind,
			ItemID:         o.ItemID,
			Title:          o.Title,
			UserID:         o.UserID,
			Email:          o.Email,
			AmountPaid:     o.AmountPaid,
			Price:          o.Price,
			OriginalAmount: o.OriginalAmount,
			Currency:       o.Currency,
			Status:         o.Status,
			FlashSaleTitle: o.FlashSaleTitle,
			CreatedAt:      o.CreatedAt,
		}
		if _, err := models.NormalizeOrder(*raw); err != nil {
			return stats, fmt.Errorf("order %q: %w", o.Reference, err)
		}
		if err := db.InsertRawOrder(ctx, raw); err != nil {
			return stats, fmt.Errorf("insert order %q: %w", o.Reference, err)
		}
		stats.orders++
	}

	return stats, nil
}
