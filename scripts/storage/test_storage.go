package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/stake-plus/validai/src/data"
)

func main() {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "dev:test@tcp(localhost:3306)/validai"
	}
	db, err := data.ConnectMySQL(dsn, true)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	store, err := data.NewGormStore(db)
	if err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	ctx := context.Background()

	rec := &data.VerificationRecord{
		ID:                   uuid.NewString(),
		InputType:            "text",
		InputText:            "storage smoke test " + time.Now().Format(time.RFC3339),
		Status:               "success",
		Classification:       "NOT_VERIFIABLE",
		ConfidencePercentage: 40,
		Envelope:             []byte(`{"status":"success"}`),
		ProcessedAt:          time.Now().UTC(),
	}
	if err := store.Save(ctx, rec); err != nil {
		log.Fatalf("Save: %v", err)
	}
	log.Printf("Saved record %s", rec.ID)

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		log.Fatalf("Get: %v", err)
	}
	log.Printf("  Input: %s", got.InputText)
	log.Printf("  Classification: %s (%d%%)", got.Classification, got.ConfidencePercentage)

	items, total, err := store.List(ctx, data.HistoryQuery{Search: "storage smoke", PageSize: 5})
	if err != nil {
		log.Fatalf("List: %v", err)
	}
	log.Printf("Search matched %d records (%d on this page)", total, len(items))

	stats, err := store.Stats(ctx)
	if err != nil {
		log.Fatalf("Stats: %v", err)
	}
	log.Printf("Stats: total=%d errors=%d", stats.TotalVerifications, stats.Errors)
	for class, n := range stats.ByClassification {
		log.Printf("    %s: %d", class, n)
	}

	if err := store.Delete(ctx, rec.ID); err != nil {
		log.Fatalf("Delete: %v", err)
	}
	log.Printf("Deleted record %s", rec.ID)
}
