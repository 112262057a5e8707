package matcher

import (
	"errors"
	"testing"

	"bot-marketplace/internal/models"
)

func TestParsePriceLine(t *testing.T) {
	entry, err := ParsePriceLine("🇭🇰 Sim+eSim 17 Pro Max 512GB White — 134000₽")
	if err != nil {
		t.Fatalf("ParsePriceLine: %v", err)
	}
	if entry.Price != 134000 {
		t.Errorf("Price = %d", entry.Price)
	}
	if entry.ProductText != "Sim+eSim 17 Pro Max 512GB White" {
		t.Errorf("ProductText = %q", entry.ProductText)
	}
	want := models.Components{Model: "17 Pro Max", Storage: "512GB", Color: "Silver", Connectivity: models.ConnectivityDual}
	if entry.Components != want {
		t.Errorf("Components = %+v, want %+v", entry.Components, want)
	}
}

func TestParsePriceLineVariants(t *testing.T) {
	tests := []struct {
		line  string
		price int64
		conn  models.Connectivity
	}{
		{"🇺🇸🇯🇵 eSim 17 Pro 256GB Blue — 99 990 ₽", 99990, models.ConnectivityESIMOnly},
		{"Sim+eSim 17 Air 256GB Sky Blue — 89000", 89000, models.ConnectivityESIMOnly},
		{"17 256GB Black —  71500₽ (новый)", 71500, models.ConnectivityDual},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			entry, err := ParsePriceLine(tt.line)
			if err != nil {
				t.Fatalf("ParsePriceLine: %v", err)
			}
			if entry.Price != tt.price || entry.Components.Connectivity != tt.conn {
				t.Errorf("got price=%d conn=%s, want %d %s", entry.Price, entry.Components.Connectivity, tt.price, tt.conn)
			}
		})
	}
}

func TestParsePriceLineErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"17 Pro 256GB Blue 134000", ErrNoSeparator},
		{"17 Pro — 256GB — 134000", ErrNoSeparator},
		{"17 Pro 256GB Blue — sem preço", ErrNoPrice},
	}
	for _, tt := range tests {
		if _, err := ParsePriceLine(tt.line); !errors.Is(err, tt.want) {
			t.Errorf("ParsePriceLine(%q) error = %v, want %v", tt.line, err, tt.want)
		}
	}
}

func TestParsePriceList(t *testing.T) {
	text := `Atualização de hoje:

🇭🇰 Sim+eSim 17 Pro Max 512GB Blue — 134000₽
🇭🇰 Sim+eSim 17 Pro Max 512GB Orange — 128000₽
17 Pro — sem preço
`
	entries, rejected := ParsePriceList(text)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[1].Components.Color != "Orange" || entries[1].Price != 128000 {
		t.Errorf("second entry = %+v", entries[1])
	}
	if len(rejected) != 1 || rejected[0] != "17 Pro — sem preço" {
		t.Errorf("rejected = %q", rejected)
	}
}

func TestMatchProductFirstMatchWins(t *testing.T) {
	entry, err := ParsePriceLine("🇭🇰 Sim+eSim 17 Pro Max 512GB White — 134000₽")
	if err != nil {
		t.Fatal(err)
	}

	a := models.TrackedProduct{ID: 1, Name: "iPhone 17 Pro Max 512GB Silver"}
	b := models.TrackedProduct{ID: 2, Name: "IPHONE 17 PRO MAX 512GB SILVER"}
	other := models.TrackedProduct{ID: 3, Name: "iPhone 17 Pro Max 256GB Silver"}

	if got, ok := MatchProduct(entry, []models.TrackedProduct{other, a, b}); !ok || got.ID != 1 {
		t.Errorf("expected product 1, got %d (ok=%v)", got.ID, ok)
	}
	if got, ok := MatchProduct(entry, []models.TrackedProduct{b, a}); !ok || got.ID != 2 {
		t.Errorf("expected product 2, got %d (ok=%v)", got.ID, ok)
	}
	if _, ok := MatchProduct(entry, []models.TrackedProduct{other}); ok {
		t.Error("expected no match")
	}
}

func TestMatchProductRequiresAllComponents(t *testing.T) {
	entry, err := ParsePriceLine("eSim 17 Pro 256GB Blue — 100000")
	if err != nil {
		t.Fatal(err)
	}
	candidates := []models.TrackedProduct{
		{ID: 1, Name: "iPhone 17 Pro 256GB Blue"}, // padrão nano-SIM + eSIM
		{ID: 2, Name: "iPhone 17 Pro Blue eSIM"},  // sem memória
		{ID: 3, Name: "iPhone 17 Pro Max 256GB Blue eSIM"},
		{ID: 4, Name: "iPhone 17 Pro 256GB Blue eSIM"},
	}
	got, ok := MatchProduct(entry, candidates)
	if !ok || got.ID != 4 {
		t.Errorf("expected product 4, got %d (ok=%v)", got.ID, ok)
	}
}

func TestPlanPriceUpdate(t *testing.T) {
	entries, _ := ParsePriceList("🇭🇰 Sim+eSim 17 Pro Max 512GB White — 134000₽\n🇭🇰 eSim 17 Air 1TB Black — 90000₽")
	candidates := []models.TrackedProduct{
		{ID: 7, Name: "iPhone 17 Pro Max 512GB Silver", ThresholdMin: 1, ThresholdMax: 2},
	}

	plan := PlanPriceUpdate(entries, candidates, 8.5, 18000)
	if len(plan.Updates) != 1 {
		t.Fatalf("updates = %d", len(plan.Updates))
	}
	u := plan.Updates[0]
	if u.Product.ID != 7 || u.Max != 122610 || u.Min != 104610 {
		t.Errorf("update = id %d [%v, %v], want id 7 [104610, 122610]", u.Product.ID, u.Min, u.Max)
	}
	if len(plan.Unmatched) != 1 || plan.Unmatched[0] != "🇭🇰 eSim 17 Air 1TB Black — 90000₽" {
		t.Errorf("unmatched = %q", plan.Unmatched)
	}
}
