/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/minimart/apiserver/config"
	"github.com/minimart/apiserver/internal/db"
	"github.com/minimart/apiserver/internal/services"
	"github.com/minimart/apiserver/internal/store"
	"github.com/minimart/apiserver/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// seedCmd loads a demo catalog and ensures the administrator account
// exists with the configured credentials.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo products and the admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		ctx := cmd.Context()
		productRepo := store.NewProductRepository(dbConn)
		userService := services.NewUserService(store.NewUserRepository(dbConn))

		if cfg.Admin.Password == "" {
			return errors.New("ADMIN_PASSWORD is required")
		}
		admin, err := userService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
		logrus.WithField("username", admin.Username).Info("admin account ready")

		count, err := productRepo.Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			logrus.WithField("products", count).Info("catalog already seeded, skipping")
			return nil
		}

		for _, product := range demoCatalog() {
			created, err := productRepo.Create(ctx, product)
			if err != nil {
				return fmt.Errorf("seed product %q: %w", product.Name, err)
			}
			logrus.WithFields(logrus.Fields{
				"id":   created.ID,
				"name": created.Name,
			}).Info("seeded product")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func demoCatalog() []types.Product {
	return []types.Product{
		{
			Name:        "Aurora Wireless Headphones",
			Price:       99.99,
			Description: "Comfort-fit Bluetooth headphones with rich bass and 30-hour battery life.",
			Category:    "Audio",
			Brand:       "Apex",
			SKU:         "AUR-HP-001",
			Stock:       24,
			Weight:      "250g",
			Warranty:    "2 years",
			Origin:      "Germany",
			Shipping:    "Free",
			Returns:     "30 days",
		},
		{
			Name:        "Nimbus Smartwatch Pro",
			Price:       199.0,
			Description: "Smartwatch with AMOLED display, GPS, and heart-rate tracking.",
			Category:    "Wearables",
			Brand:       "Nimbus",
			SKU:         "NIM-SW-002",
			Stock:       40,
			Weight:      "48g",
			Warranty:    "1 year",
			Origin:      "Taiwan",
			Shipping:    "Free",
			Returns:     "30 days",
		},
		{
			Name:        "Vertex Mechanical Keyboard",
			Price:       129.5,
			Description: "Hot-swappable mechanical keyboard with PBT keycaps and RGB backlight.",
			Category:    "Accessories",
			Brand:       "Vertex",
			SKU:         "VTX-KB-003",
			Stock:       60,
			Weight:      "900g",
			Dimensions:  "36 x 13 x 4 cm",
			Warranty:    "1 year",
			Origin:      "China",
			Shipping:    "Free",
			Returns:     "30 days",
		},
		{
			Name:        "Solace Espresso Maker",
			Price:       349.0,
			Description: "Compact 15-bar espresso machine with steam wand and thermoblock heating.",
			Category:    "Kitchen",
			Brand:       "Solace",
			SKU:         "SOL-EM-004",
			Stock:       12,
			Weight:      "4.2kg",
			Dimensions:  "30 x 25 x 31 cm",
			Warranty:    "2 years",
			Origin:      "Italy",
			Shipping:    "Free",
			Returns:     "30 days",
		},
		{
			Name:        "Drift Trail Backpack 28L",
			Price:       79.0,
			Description: "Weather-resistant daypack with laptop sleeve and ventilated back panel.",
			Category:    "Outdoor",
			Brand:       "Drift",
			SKU:         "DRF-BP-005",
			Stock:       80,
			Weight:      "1.1kg",
			Warranty:    "Lifetime",
			Origin:      "Vietnam",
			Shipping:    "Free",
			Returns:     "30 days",
		},
	}
}
