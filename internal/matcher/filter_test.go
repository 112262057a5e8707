package matcher

import (
	"testing"

	"bot-marketplace/internal/models"
)

func TestIsExcluded(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		exclusion string
		want      bool
	}{
		{"physical sim co-occurs", "nano-sim + esim dual connectivity", "esim", false},
		{"dual sim phrasing", "Apple iPhone 17 Pro dual sim esim", "esim", false},
		{"esim only", "esim only", "esim", true},
		{"dual esim phrasing", "dual esim nano-sim", "esim", true},
		{"plain esim", "Apple iPhone 17 Pro eSIM", "esim", true},
		{"compact equality", "E-SIM", "esim", true},
		{"single token", "Смартфон Apple iPhone 16 Pro", "16", true},
		{"token not substring", "professional camera", "pro", false},
		{"multi token run", "iPhone 17 Pro Max", "pro max", true},
		{"multi token missing", "iPhone 17 Pro", "pro max", false},
		{"cyrillic", "Восстановленный смартфон", "восстановленный", true},
		{"empty exclusion", "anything", "  ", false},
		{"non esim term ignores sim context", "nano-sim + esim", "nano-sim", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExcluded(tt.text, tt.exclusion); got != tt.want {
				t.Errorf("IsExcluded(%q, %q) = %v, want %v", tt.text, tt.exclusion, got, tt.want)
			}
		})
	}
}

func TestFilterByExclusions(t *testing.T) {
	results := []models.RawResult{
		{ID: 1, Title: "Apple iPhone 17 Pro 256GB"},
		{ID: 2, Title: "Apple iPhone 17 Pro 256GB (Восстановленный)"},
		{ID: 3, Title: "Apple iPhone 17 Pro", Brand: "Refurb"},
		{ID: 4, Title: "Apple iPhone 17 Pro", Characteristics: []models.Characteristic{
			{Name: "Состояние", Values: []string{"Восстановленный", "новый"}},
		}},
		{ID: 5, Title: "Apple iPhone 17 Pro", Characteristics: []models.Characteristic{
			{Name: "Состояние", Values: []string{"новый", "Восстановленный"}},
		}},
		{ID: 6, Title: "Apple iPhone 17 Pro", Colors: []string{"refurb"}},
	}

	kept := FilterByExclusions(results, []string{"восстановленный", "refurb"})
	if got := ids(kept); !equalIDs(got, []int64{1, 4}) {
		t.Errorf("kept %v, want [1 4]", got)
	}

	if got := FilterByExclusions(results, nil); len(got) != len(results) {
		t.Errorf("no exclusions must keep everything")
	}
}

func TestFilterByExclusionsSellerFallsBackToBrand(t *testing.T) {
	results := []models.RawResult{
		{ID: 1, Title: "x", Seller: "Loja Boa", Brand: "Refurb"},
		{ID: 2, Title: "x", Brand: "Refurb"},
	}
	if got := ids(FilterByExclusions(results, []string{"refurb"})); !equalIDs(got, []int64{1}) {
		t.Errorf("kept %v, want [1]", got)
	}
}

func TestFilterByExclusionsESIMContext(t *testing.T) {
	results := []models.RawResult{
		{ID: 1, Title: "Apple iPhone 17 Pro", Characteristics: []models.Characteristic{
			{Name: "SIM", Values: []string{"", "nano-sim + esim dual connectivity"}},
		}},
		{ID: 2, Title: "Apple iPhone 17 Pro", Characteristics: []models.Characteristic{
			{Name: "SIM", Values: []string{"", "esim only"}},
		}},
	}
	if got := ids(FilterByExclusions(results, []string{"esim"})); !equalIDs(got, []int64{1}) {
		t.Errorf("kept %v, want [1]", got)
	}
}

func TestFilterByKeywords(t *testing.T) {
	results := []models.RawResult{
		{ID: 1, Title: "Apple iPhone 17 Pro 256GB Silver"},
		{ID: 2, Title: "Apple iPhone 17 Pro 512GB Silver"},
		{ID: 3, Title: "Apple iPhone 17 Pro 256GB", Colors: []string{"silver"}},
	}

	tests := []struct {
		name     string
		keywords []string
		want     []int64
	}{
		{"no keywords", nil, []int64{1, 2, 3}},
		{"blank keywords", []string{" ", ""}, []int64{1, 2, 3}},
		{"single", []string{"512gb"}, []int64{2}},
		{"all must match", []string{"256GB", "Silver"}, []int64{1, 3}},
		{"none", []string{"1TB"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(FilterByKeywords(results, tt.keywords)); !equalIDs(got, tt.want) {
				t.Errorf("kept %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterByKeywordsDocumentDepth(t *testing.T) {
	shallow := models.RawResult{ID: 1, Doc: map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "Reachable"}},
	}}
	deep := models.RawResult{ID: 2, Doc: map[string]any{
		"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": "reachable"}}},
	}}
	numeric := models.RawResult{ID: 3, Doc: map[string]any{
		"id": float64(254891234), "list": []any{"reachable", true},
	}}

	got := ids(FilterByKeywords([]models.RawResult{shallow, deep, numeric}, []string{"reachable"}))
	if !equalIDs(got, []int64{1, 3}) {
		t.Errorf("kept %v, want [1 3]", got)
	}
	if got := ids(FilterByKeywords([]models.RawResult{numeric}, []string{"254891234", "true"})); !equalIDs(got, []int64{3}) {
		t.Errorf("numbers and booleans must be searchable, kept %v", got)
	}
}

func ids(rs []models.RawResult) []int64 {
	var out []int64
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
