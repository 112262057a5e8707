package monitor

import (
	"fmt"
	"html"
	"math"
	"strings"

	"bot-marketplace/internal/matcher"
	"bot-marketplace/internal/models"
	"bot-marketplace/internal/scraper"
)

// DiscountedPrice aplica o desconto do site (em %) e arredonda para rublos inteiros
func DiscountedPrice(price, discountPct float64) float64 {
	return math.RoundToEven(price * (1 - discountPct/100))
}

// ModelMatches impede que um anúncio de outro modelo satisfaça a faixa.
// Compara os modelos canônicos por igualdade: "17 Pro" não aceita "17 Pro Max" e vice-versa.
// Sem modelo no nome monitorado, tudo passa.
func ModelMatches(trackedName, foundTitle string) bool {
	want := matcher.Extract(trackedName).Model
	if want == "" {
		return true
	}
	return strings.EqualFold(want, matcher.Extract(foundTitle).Model)
}

// ShouldNotify só libera o envio no primeiro avistamento, com preço anterior
// desconhecido ou quando o preço caiu estritamente.
func ShouldNotify(entry *models.LedgerEntry, price float64) bool {
	if entry == nil || entry.LastPrice == nil {
		return true
	}
	return price < *entry.LastPrice
}

// composeMessage monta o texto HTML enviado ao canal
func composeMessage(offer models.Offer, price float64, band models.TrackedProduct) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b> · %d un.\n\n", html.EscapeString(offer.Name), offer.Stock)
	fmt.Fprintf(&b, "Preço: %d₽ (%d₽ abaixo do teto)\n", int64(price), int64(band.ThresholdMax)-int64(price))
	fmt.Fprintf(&b, "Teto: %d₽ | %s\n", int64(band.ThresholdMax), html.EscapeString(band.Name))

	seller := html.EscapeString(offer.Seller)
	if offer.SupplierID != 0 {
		fmt.Fprintf(&b, "\n🏪 Vendedor: <a href=\"%s\">%s</a>\n", scraper.SellerURL(offer.SupplierID), seller)
	} else {
		fmt.Fprintf(&b, "\nVendedor: %s\n", seller)
	}

	fmt.Fprintf(&b, "\nLink: %s", offer.URL)
	return b.String()
}
