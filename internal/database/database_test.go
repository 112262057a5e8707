package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bot-marketplace/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "parser.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProducts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id1, err := db.AddProduct(ctx, models.TrackedProduct{
		Name:         "  iPhone 17 Pro 256GB ",
		ThresholdMin: 90000,
		ThresholdMax: 100000,
		Keywords:     []string{"256GB", " ", "Silver"},
		Exclusions:   []string{"восстановленный"},
	})
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	id2, err := db.AddProduct(ctx, models.TrackedProduct{Name: "iPhone 17 Pro 256GB", ThresholdMin: 80000})
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	products, err := db.TrackedProducts(ctx)
	if err != nil {
		t.Fatalf("TrackedProducts: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products", len(products))
	}

	p := products[0]
	if p.ID != id1 || p.Name != "iPhone 17 Pro 256GB" || p.ThresholdMin != 90000 || p.ThresholdMax != 100000 {
		t.Errorf("first product = %+v", p)
	}
	if len(p.Keywords) != 2 || p.Keywords[1] != "Silver" {
		t.Errorf("keywords = %q", p.Keywords)
	}
	if len(p.Exclusions) != 1 || p.Exclusions[0] != "восстановленный" {
		t.Errorf("exclusions = %q", p.Exclusions)
	}
	if products[1].ID != id2 || products[1].ThresholdMax != 80000 || products[1].Keywords != nil {
		t.Errorf("ceiling must default to the floor: %+v", products[1])
	}

	if err := db.UpdateProductBand(ctx, id2, 104610, 122610); err != nil {
		t.Fatalf("UpdateProductBand: %v", err)
	}
	products, _ = db.TrackedProducts(ctx)
	if products[1].ThresholdMin != 104610 || products[1].ThresholdMax != 122610 {
		t.Errorf("band not updated: %+v", products[1])
	}

	if err := db.UpdateProductBand(ctx, 999, 1, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProductBand(999) = %v, want ErrNotFound", err)
	}
	if err := db.DeleteProduct(ctx, id1); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if err := db.DeleteProduct(ctx, id1); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteProduct = %v, want ErrNotFound", err)
	}

	n, err := db.DeleteAllProducts(ctx)
	if err != nil || n != 1 {
		t.Errorf("DeleteAllProducts = %d, %v", n, err)
	}
}

func TestLegacyListColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.conn.Exec(
		`INSERT INTO global_products (name, threshold_min, keywords, exclusions, created_at, updated_at)
		 VALUES ('x', 10, 'a, b', '["c"]', 0, 0)`); err != nil {
		t.Fatal(err)
	}
	products, err := db.TrackedProducts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p := products[0]
	if len(p.Keywords) != 2 || p.Keywords[0] != "a" || p.Keywords[1] != "b" {
		t.Errorf("keywords = %q", p.Keywords)
	}
	if len(p.Exclusions) != 1 || p.Exclusions[0] != "c" {
		t.Errorf("exclusions = %q", p.Exclusions)
	}
	if p.ThresholdMax != 10 {
		t.Errorf("NULL ceiling must default to the floor, got %v", p.ThresholdMax)
	}
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.Setting(ctx, models.SettingNotificationChannel); err != nil || ok {
		t.Fatalf("missing setting: ok=%v err=%v", ok, err)
	}
	if err := db.SetSetting(ctx, models.SettingNotificationChannel, "@precos"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSetting(ctx, models.SettingNotificationChannel, "-100123"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Setting(ctx, models.SettingNotificationChannel)
	if err != nil || !ok || v != "-100123" {
		t.Errorf("Setting = %q, %v, %v", v, ok, err)
	}

	if err := db.SetSetting(ctx, models.SettingSiteBaseDiscount, "  "); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.Setting(ctx, models.SettingSiteBaseDiscount); ok {
		t.Error("blank setting must read as missing")
	}
}

func TestNotificationLedger(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	const url = "https://www.wildberries.ru/catalog/1/detail.aspx?name=x"

	e, err := db.Notification(ctx, url)
	if err != nil || e != nil {
		t.Fatalf("Notification on empty ledger = %+v, %v", e, err)
	}

	e, err = db.UpsertNotification(ctx, url, 59999, "iPhone 17", "@precos")
	if err != nil {
		t.Fatalf("UpsertNotification: %v", err)
	}
	if e.LastPrice == nil || *e.LastPrice != 59999 || e.ProductName != "iPhone 17" || e.ChannelID != "@precos" {
		t.Errorf("entry = %+v", e)
	}
	if !e.LastSentAt.Equal(now) {
		t.Errorf("LastSentAt = %v", e.LastSentAt)
	}

	now = now.Add(time.Hour)
	e, err = db.UpsertNotification(ctx, url, 59000, "", "")
	if err != nil {
		t.Fatalf("UpsertNotification: %v", err)
	}
	if *e.LastPrice != 59000 || e.ProductName != "iPhone 17" || e.ChannelID != "@precos" || !e.LastSentAt.Equal(now) {
		t.Errorf("updated entry = %+v", e)
	}

	if n, _ := db.CountNotifications(ctx); n != 1 {
		t.Errorf("one entry per URL expected, got %d", n)
	}
}

func TestNotificationUnknownPrice(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.conn.Exec(
		"INSERT INTO channel_notifications (url, last_price, last_sent_at) VALUES ('u', NULL, 0)"); err != nil {
		t.Fatal(err)
	}
	e, err := db.Notification(ctx, "u")
	if err != nil || e == nil {
		t.Fatalf("Notification = %+v, %v", e, err)
	}
	if e.LastPrice != nil {
		t.Errorf("NULL price must read as unknown, got %v", *e.LastPrice)
	}
}

func TestPurgeNotifications(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, age := range []int{20, 15, 13, 1} {
		db.now = func() time.Time { return base.AddDate(0, 0, -age) }
		if _, err := db.UpsertNotification(ctx, "u"+string(rune('a'+i)), 1, "", ""); err != nil {
			t.Fatal(err)
		}
	}

	db.now = func() time.Time { return base }
	n, err := db.PurgeNotifications(ctx, 14)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("purged %d, want 2", n)
	}
	if e, _ := db.Notification(ctx, "uc"); e == nil {
		t.Error("recent entry must survive")
	}
	if e, _ := db.Notification(ctx, "ua"); e != nil {
		t.Error("old entry must be purged")
	}
}

func TestEncodeList(t *testing.T) {
	v, err := encodeList([]string{" ", ""})
	if err != nil || v.Valid {
		t.Errorf("empty list must be NULL: %+v %v", v, err)
	}
	if got := decodeList(sql.NullString{}); got != nil {
		t.Errorf("decodeList(NULL) = %q", got)
	}
}
