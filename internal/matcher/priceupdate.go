package matcher

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"bot-marketplace/internal/models"
)

// PriceSeparator separa a descrição do preço numa linha de atualização
const PriceSeparator = "—"

var (
	flagRe  = regexp.MustCompile(`[\x{1F1E6}-\x{1F1FF}]+\s*`)
	priceRe = regexp.MustCompile(`\d[\d \x{00A0}]*`)
)

var (
	ErrNoSeparator = errors.New("linha sem separador de preço")
	ErrNoPrice     = errors.New("linha sem preço")
)

// PriceEntry é uma linha de atualização de preço já interpretada
type PriceEntry struct {
	Original    string
	ProductText string
	Price       int64
	Components  models.Components
}

// ParsePriceLine interpreta uma linha no formato
// "🇭🇰 Sim+eSim 17 Pro Max 512GB Blue — 134000₽".
func ParsePriceLine(line string) (PriceEntry, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, PriceSeparator)
	if len(parts) != 2 {
		return PriceEntry{}, ErrNoSeparator
	}

	product := strings.TrimSpace(flagRe.ReplaceAllString(parts[0], ""))
	raw := priceRe.FindString(parts[1])
	if raw == "" {
		return PriceEntry{}, ErrNoPrice
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	price, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return PriceEntry{}, fmt.Errorf("preço inválido %q: %w", raw, err)
	}

	comps := Extract(product)
	// a linha Air só existe em versão somente eSIM
	if strings.Contains(strings.ToLower(comps.Model), "air") {
		comps.Connectivity = models.ConnectivityESIMOnly
	}

	return PriceEntry{
		Original:    line,
		ProductText: product,
		Price:       price,
		Components:  comps,
	}, nil
}

// ParsePriceList interpreta uma mensagem com várias linhas.
// Linhas vazias ou sem separador são ignoradas; as inválidas voltam em rejected.
func ParsePriceList(text string) (entries []PriceEntry, rejected []string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, PriceSeparator) {
			continue
		}
		entry, err := ParsePriceLine(line)
		if err != nil {
			rejected = append(rejected, line)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rejected
}

// MatchProduct retorna o primeiro produto cujo nome tem os mesmos quatro atributos da linha
func MatchProduct(entry PriceEntry, candidates []models.TrackedProduct) (models.TrackedProduct, bool) {
	for _, p := range candidates {
		if ComponentsMatch(entry.Components, Extract(p.Name)) {
			return p, true
		}
	}
	return models.TrackedProduct{}, false
}

// BandUpdate é a nova faixa calculada para um produto
type BandUpdate struct {
	Product models.TrackedProduct
	Entry   PriceEntry
	Min     float64
	Max     float64
}

// PriceUpdatePlan reúne as faixas a gravar e as linhas sem produto correspondente
type PriceUpdatePlan struct {
	Updates   []BandUpdate
	Unmatched []string
}

// PlanPriceUpdate calcula as novas faixas: teto = preço com desconto, piso = teto - band
func PlanPriceUpdate(entries []PriceEntry, candidates []models.TrackedProduct, discountPct, band float64) PriceUpdatePlan {
	var plan PriceUpdatePlan
	for _, entry := range entries {
		product, ok := MatchProduct(entry, candidates)
		if !ok {
			plan.Unmatched = append(plan.Unmatched, entry.Original)
			continue
		}
		ceiling := math.RoundToEven(float64(entry.Price) * (1 - discountPct/100))
		plan.Updates = append(plan.Updates, BandUpdate{
			Product: product,
			Entry:   entry,
			Min:     ceiling - band,
			Max:     ceiling,
		})
	}
	return plan
}
