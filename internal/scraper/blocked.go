package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockedPage verifica se um corpo que não é JSON parece a página HTML de bloqueio
// (o marketplace às vezes devolve 200 com HTML no lugar de 403/429).
// Retorna também um resumo da página para o log.
func blockedPage(body string) (bool, string) {
	lower := strings.ToLower(body)
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "blocked") {
		return false, ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return true, ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title != "" {
		return true, title
	}
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > 120 {
		text = text[:120]
	}
	return true, text
}

// preview corta o corpo da resposta para o log
func preview(body string, n int) string {
	if len(body) <= n {
		return body
	}
	return body[:n]
}
