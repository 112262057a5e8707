package matcher

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"bot-marketplace/internal/models"
)

// maxFlattenDepth limita a descida no documento do resultado
const maxFlattenDepth = 3

var (
	connectorRe = regexp.MustCompile(`[^0-9a-zа-яё+\-/]+`)
	compactRe   = regexp.MustCompile(`[^0-9a-zа-яё]+`)
)

var physicalSIMMarkers = []string{
	" sim", " nano-sim", " nanosim", " nano sim", " physical sim",
	" 2 sim", " dual sim", "sim +", "+ sim",
}

var esimOnlyPhrases = []string{
	"esim only", "only esim", "e-sim only", "esim+esim", "dual esim",
}

// FilterByKeywords mantém os resultados que contêm todas as palavras-chave
// em algum campo de texto. Sem palavras-chave, nada é removido.
func FilterByKeywords(results []models.RawResult, keywords []string) []models.RawResult {
	needles := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			needles = append(needles, kw)
		}
	}
	if len(needles) == 0 {
		return results
	}

	kept := make([]models.RawResult, 0, len(results))
	for _, r := range results {
		text := searchableText(r)
		all := true
		for _, n := range needles {
			if !strings.Contains(text, n) {
				all = false
				break
			}
		}
		if all {
			kept = append(kept, r)
		}
	}
	return kept
}

// searchableText concatena em minúsculas os campos de texto do resultado
func searchableText(r models.RawResult) string {
	if r.Doc != nil {
		return strings.ToLower(strings.Join(flatten(r.Doc), " "))
	}

	parts := []string{r.Title, r.Brand, r.Seller, r.MetadataName}
	for _, ch := range r.Characteristics {
		parts = append(parts, ch.Name)
		parts = append(parts, ch.Values...)
	}
	parts = append(parts, r.Colors...)
	return strings.ToLower(strings.Join(parts, " "))
}

// flatten percorre o documento com uma pilha explícita, até maxFlattenDepth níveis
func flatten(root any) []string {
	type item struct {
		v     any
		depth int
	}

	var parts []string
	stack := []item{{root, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.depth > maxFlattenDepth {
			continue
		}

		switch v := it.v.(type) {
		case nil:
		case string:
			parts = append(parts, v)
		case float64:
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			parts = append(parts, strconv.FormatBool(v))
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			// ordem inversa na pilha para visitar as chaves em ordem
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, item{v[keys[i]], it.depth + 1})
			}
		case []any:
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, item{v[i], it.depth + 1})
			}
		}
	}
	return parts
}

// field é um campo de texto considerado pelas exclusões
type field struct {
	tokens  []string
	compact []string
	text    string
	skip    bool
}

func newField(s string, skip bool) field {
	norm := normalizeConnectors(s)
	tokens := strings.Fields(norm)
	compact := make([]string, len(tokens))
	for i, t := range tokens {
		compact[i] = compactText(t)
	}
	return field{tokens: tokens, compact: compact, text: strings.Join(tokens, " "), skip: skip}
}

func exclusionFields(r models.RawResult) []field {
	var fields []field
	add := func(s string, skip bool) {
		if strings.TrimSpace(s) != "" {
			fields = append(fields, newField(s, skip))
		}
	}

	add(r.MetadataName, false)
	for _, ch := range r.Characteristics {
		add(ch.Name, false)
		for j, v := range ch.Values {
			// o primeiro valor de cada característica não é informativo
			add(v, j == 0)
		}
	}
	add(r.Title, false)
	if r.Seller != "" {
		add(r.Seller, false)
	} else {
		add(r.Brand, false)
	}
	for _, c := range r.Colors {
		add(c, false)
	}
	return fields
}

// FilterByExclusions remove resultados em que algum termo de exclusão aparece.
// Um termo sobre eSIM não exclui anúncios que também citam SIM física.
func FilterByExclusions(results []models.RawResult, exclusions []string) []models.RawResult {
	type term struct {
		tokens  []string
		compact string
		esim    bool
	}

	var terms []term
	for _, ex := range exclusions {
		ex = strings.ToLower(strings.TrimSpace(ex))
		if ex == "" {
			continue
		}
		norm := normalizeConnectors(ex)
		terms = append(terms, term{
			tokens:  strings.Fields(norm),
			compact: compactText(norm),
			esim:    strings.Contains(norm, "esim"),
		})
	}
	if len(terms) == 0 {
		return results
	}

	kept := make([]models.RawResult, 0, len(results))
	for _, r := range results {
		fields := exclusionFields(r)
		excluded := false
		for _, t := range terms {
			if matchesAny(fields, t.tokens, t.compact, t.esim) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, r)
		}
	}
	return kept
}

// IsExcluded informa se o termo exclui o texto, aplicando as mesmas regras do filtro
func IsExcluded(text, exclusion string) bool {
	exclusion = strings.ToLower(strings.TrimSpace(exclusion))
	if exclusion == "" {
		return false
	}
	norm := normalizeConnectors(exclusion)
	return matchesAny([]field{newField(text, false)}, strings.Fields(norm), compactText(norm), strings.Contains(norm, "esim"))
}

func matchesAny(fields []field, tokens []string, compact string, esim bool) bool {
	for _, f := range fields {
		if f.skip {
			continue
		}
		if esim && physicalSIMPresent(f.text) {
			continue
		}
		if len(tokens) == 1 && contains(f.tokens, tokens[0]) {
			return true
		}
		if compact != "" && contains(f.compact, compact) {
			return true
		}
		if len(tokens) > 1 && containsRun(f.tokens, tokens) {
			return true
		}
	}
	return false
}

// physicalSIMPresent indica eSIM acompanhado de SIM física, fora das frases de "somente eSIM"
func physicalSIMPresent(text string) bool {
	if !strings.Contains(text, "esim") {
		return false
	}
	for _, bad := range esimOnlyPhrases {
		if strings.Contains(text, bad) {
			return false
		}
	}
	for _, m := range physicalSIMMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func normalizeConnectors(s string) string {
	s = connectorRe.ReplaceAllString(strings.ToLower(s), " ")
	return collapse(s)
}

func compactText(s string) string {
	return compactRe.ReplaceAllString(strings.ToLower(s), "")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsRun(tokens, run []string) bool {
	for i := 0; i+len(run) <= len(tokens); i++ {
		match := true
		for j := range run {
			if tokens[i+j] != run[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
