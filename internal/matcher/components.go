// Package matcher extrai atributos canônicos de títulos de produtos e decide
// quais resultados de busca entram ou saem do monitoramento.
package matcher

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bot-marketplace/internal/models"
)

var (
	brandRe   = regexp.MustCompile(`\biphone\b`)
	dualRe    = regexp.MustCompile(`\b(?:nano[\s-]?)?sim\s*[+/]\s*e-?sim\b`)
	esimRe    = regexp.MustCompile(`\be-?sim(?:\s*\+\s*e-?sim)?\b`)
	storageRe = regexp.MustCompile(`\b(\d+)\s*(gb|tb)\b`)
	modelRe   = regexp.MustCompile(`\b(\d+)(?:\s+(pro\s+max|pro|plus|air|mini))?\b`)
	spacesRe  = regexp.MustCompile(`\s+`)
)

// modelos cujo "White" aparece no marketplace como "Silver"
var silverFinishModels = map[string]bool{
	"17 pro":     true,
	"17 pro max": true,
}

// Extract decompõe um título em modelo, memória, cor e conectividade.
// Cada etapa remove o trecho encontrado antes da próxima, para que um
// atributo não seja lido duas vezes.
func Extract(title string) models.Components {
	text := strings.ToLower(title)
	text = brandRe.ReplaceAllString(text, " ")

	var c models.Components

	// Conectividade: sem marcação explícita vale o padrão nano-SIM + eSIM
	switch {
	case dualRe.MatchString(text):
		c.Connectivity = models.ConnectivityDual
		text = removeFirst(text, dualRe)
	case esimRe.MatchString(text):
		c.Connectivity = models.ConnectivityESIMOnly
		text = removeFirst(text, esimRe)
	default:
		c.Connectivity = models.ConnectivityDual
	}

	if m := storageRe.FindStringSubmatchIndex(text); m != nil {
		c.Storage = text[m[2]:m[3]] + strings.ToUpper(text[m[4]:m[5]])
		text = text[:m[0]] + " " + text[m[1]:]
	}

	if m := modelRe.FindStringSubmatchIndex(text); m != nil {
		model := text[m[2]:m[3]]
		if m[4] >= 0 {
			model += " " + collapse(text[m[4]:m[5]])
		}
		c.Model = titleCase(model)
		text = text[:m[0]] + " " + text[m[1]:]
	}

	color := strings.Trim(collapse(text), " ,;-+/|")
	if color != "" {
		c.Color = titleCase(collapse(color))
	}

	if strings.EqualFold(c.Color, "white") && silverFinishModels[strings.ToLower(c.Model)] {
		c.Color = "Silver"
	}
	return c
}

// ComponentsMatch exige igualdade nos quatro atributos
func ComponentsMatch(a, b models.Components) bool {
	return a.Equal(b)
}

func removeFirst(text string, re *regexp.Regexp) string {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return text[:loc[0]] + " " + text[loc[1]:]
}

func collapse(s string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
