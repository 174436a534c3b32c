package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	webAdapter "pos-backoffice/internal/adapters/web"
	"pos-backoffice/internal/cache"
	"pos-backoffice/internal/config"
	"pos-backoffice/internal/core"
	"pos-backoffice/internal/db"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPassword)

	timeline := core.NewTimelineService(pool)
	inventory := core.NewInventoryService(pool, timeline)
	sales := core.NewSaleService(pool, inventory, timeline)
	orders := core.NewOrderService(pool, sales, timeline)
	repairs := core.NewRepairService(pool, timeline)
	transfers := core.NewTransferService(pool, inventory, timeline)
	procurement := core.NewProcurementService(pool, inventory, timeline)
	quotes := core.NewQuoteService(pool)
	expenses := core.NewExpenseService(pool, timeline)
	cashbook := core.NewCashbookService(pool, cacheClient)
	users := core.NewUserService(pool)

	handler := webAdapter.NewHandler(webAdapter.Services{
		Users:       users,
		Inventory:   inventory,
		Sales:       sales,
		Orders:      orders,
		Repairs:     repairs,
		Transfers:   transfers,
		Procurement: procurement,
		Quotes:      quotes,
		Expenses:    expenses,
		Cashbook:    cashbook,
		Timeline:    timeline,
	}, cfg.AllowedOrigins, cfg.JWTSecret)

	log.Printf("server starting on %s", cfg.Address())
	if err := http.ListenAndServe(cfg.Address(), handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
