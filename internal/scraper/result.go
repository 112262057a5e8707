package scraper

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"bot-marketplace/internal/models"
)

const (
	catalogURL = "https://www.wildberries.ru/catalog"
	sellerURL  = "https://www.wildberries.ru/seller"
)

// Project converte o documento JSON de um produto na projeção tipada.
// É o único ponto que acessa o documento por chaves de texto.
func Project(doc map[string]any) models.RawResult {
	r := models.RawResult{
		ID:         toInt(doc["id"]),
		Title:      toString(doc["name"]),
		Brand:      toString(doc["brand"]),
		Seller:     firstString(doc, "supplier", "supplierName"),
		SupplierID: toInt(doc["supplierId"]),
		Stock:      toInt(doc["totalQuantity"]),
		Doc:        doc,
	}

	if sizes, ok := doc["sizes"].([]any); ok && len(sizes) > 0 {
		if size, ok := sizes[0].(map[string]any); ok {
			if price, ok := size["price"].(map[string]any); ok {
				r.PriceMinor = toInt(price["product"])
			}
		}
	}

	meta, _ := doc["metadata"].(map[string]any)
	if meta == nil {
		meta, _ = doc["meta"].(map[string]any)
	}
	if meta != nil {
		r.MetadataName = toString(meta["name"])
		chars, ok := meta["characteristics"].([]any)
		if !ok {
			chars, _ = meta["characteristicsList"].([]any)
		}
		for _, raw := range chars {
			ch, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			c := models.Characteristic{Name: toString(ch["name"])}
			values := firstList(ch, "values", "value", "items")
			for _, v := range values {
				switch val := v.(type) {
				case string:
					c.Values = append(c.Values, val)
				case map[string]any:
					c.Values = append(c.Values, firstString(val, "name", "value", "title"))
				default:
					c.Values = append(c.Values, "")
				}
			}
			r.Characteristics = append(r.Characteristics, c)
		}
	}

	if colors, ok := doc["colors"].([]any); ok {
		for _, raw := range colors {
			if c, ok := raw.(map[string]any); ok {
				if name := firstString(c, "name", "title"); name != "" {
					r.Colors = append(r.Colors, name)
				}
			}
		}
	}

	return r
}

// ToOffer converte o resultado para rublos inteiros. Retorna false quando não há preço válido.
func ToOffer(r models.RawResult) (models.Offer, bool) {
	if r.PriceMinor <= 0 {
		return models.Offer{}, false
	}
	name := r.Title
	if name == "" {
		name = "Unknown"
	}
	seller := r.Seller
	if seller == "" {
		seller = "Unknown"
	}
	return models.Offer{
		ProductID:  r.ID,
		Name:       name,
		Price:      int64(math.RoundToEven(float64(r.PriceMinor) / 100)),
		Seller:     seller,
		SupplierID: r.SupplierID,
		Stock:      r.Stock,
		URL:        ProductURL(r.ID, name),
	}, true
}

// ProductURL monta o link direto do produto
func ProductURL(id int64, name string) string {
	if id == 0 {
		return "https://www.wildberries.ru"
	}
	runes := []rune(name)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	slug := strings.ReplaceAll(strings.ToLower(string(runes)), " ", "-")
	return fmt.Sprintf("%s/%d/detail.aspx?name=%s", catalogURL, id, slug)
}

// SellerURL monta o link da loja do vendedor
func SellerURL(supplierID int64) string {
	return fmt.Sprintf("%s/%d", sellerURL, supplierID)
}

func toString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := toString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstList(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if l, ok := m[k].([]any); ok && len(l) > 0 {
			return l
		}
	}
	return nil
}
