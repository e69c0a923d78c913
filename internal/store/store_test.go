package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"travel-geo/internal/catalog"
	"travel-geo/internal/migrate"
)

// 需要可写的 Postgres：PG_TEST_DSN=postgres://... go test ./internal/store
func TestSeedAndLoadCatalog(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	src, err := catalog.Load()
	if err != nil {
		t.Fatal(err)
	}
	st := AttachDB(db)
	ctx := context.Background()
	if err := st.SeedCatalog(ctx, src); err != nil {
		t.Fatalf("SeedCatalog: %v", err)
	}
	// idempotent
	if err := st.SeedCatalog(ctx, src); err != nil {
		t.Fatalf("second SeedCatalog: %v", err)
	}
	got, err := st.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if got.Len() < src.Len() {
		t.Fatalf("Len = %d, want >= %d", got.Len(), src.Len())
	}
	if got.Records()[0].Code != src.Records()[0].Code {
		t.Fatal("catalog order not preserved")
	}
	if cu, ok := got.Currency("BR"); !ok || cu.Symbol != "R$" {
		t.Fatalf("currency BR = %+v", cu)
	}
}
