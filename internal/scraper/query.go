package scraper

import (
	"net/url"
	"regexp"
	"strings"
)

// canonicalKeys é a ordem de parâmetros esperada pela API de busca
var canonicalKeys = []string{
	"ab_testing", "ab_testid", "appType", "curr", "dest",
	"hide_dtype", "hide_vflags", "inheritFilters", "lang",
	"page", "query", "resultset", "sort", "spp", "suppressSpellcheck",
}

// filterParam é um par chave/valor de filtro do marketplace
type filterParam struct {
	key   string
	value string
}

// keywordFilters mapeia palavras-chave para filtros estruturados (conectividade, memória, cor).
// As chaves são comparadas depois de normalizadas.
var keywordFilters = []struct {
	keyword string
	params  []filterParam
}{
	{"nano-SIM+Esim", []filterParam{{"f4433", "830086596"}}},
	{"Esim", []filterParam{{"f4433", "8047145"}}},
	{"Esim+esim", []filterParam{{"f4433", "804347144"}}},
	{"Nano-SIM", []filterParam{{"f4433", "469834"}}},
	{"256GB", []filterParam{{"f4424", "25425"}}},
	{"512GB", []filterParam{{"f4424", "117419"}}},
	{"1TB", []filterParam{{"f4424", "231154"}}},
	{"Silver", []filterParam{{"f14177449", "20214430;12065905"}}},
	{"Orange", []filterParam{{"f14177449", "20214770"}}},
	{"Blue", []filterParam{{"f14177449", "20214646"}}},
	{"White", []filterParam{{"f14177449", "12065905"}}},
	{"Black", []filterParam{{"f14177449", "13600062"}}},
}

var nonAlnum = regexp.MustCompile(`[^0-9a-zа-яё]+`)

// normalizeKeyword reduz "Nano-SIM + eSIM" a "nano sim esim"
func normalizeKeyword(s string) string {
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

// Query é um conjunto ordenado de parâmetros de busca
type Query struct {
	keys   []string
	values map[string]string
}

func newQuery() *Query {
	return &Query{values: make(map[string]string)}
}

// Set define o valor, preservando a posição de inserção da chave
func (q *Query) Set(key, value string) {
	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value
}

// Merge acrescenta valor a uma chave existente com ";" (lista OU do marketplace), sem repetir segmentos
func (q *Query) Merge(key, value string) {
	existing, ok := q.values[key]
	if !ok || existing == "" {
		q.Set(key, value)
		return
	}

	segments := strings.Split(existing, ";")
	for _, seg := range strings.Split(value, ";") {
		if seg == "" || contains(segments, seg) {
			continue
		}
		segments = append(segments, seg)
	}
	q.values[key] = strings.Join(segments, ";")
}

// Get retorna o valor de uma chave
func (q *Query) Get(key string) (string, bool) {
	v, ok := q.values[key]
	return v, ok
}

// Len retorna o número de parâmetros
func (q *Query) Len() int {
	return len(q.keys)
}

// Keys retorna as chaves na ordem em que serão codificadas
func (q *Query) Keys() []string {
	ordered := make([]string, 0, len(q.keys))
	for _, k := range canonicalKeys {
		if _, ok := q.values[k]; ok {
			ordered = append(ordered, k)
		}
	}
	for _, k := range q.keys {
		if !contains(canonicalKeys, k) {
			ordered = append(ordered, k)
		}
	}
	return ordered
}

// Encode gera a query string. ";" vira %3B e espaço vira %20.
func (q *Query) Encode() string {
	var b strings.Builder
	for i, k := range q.Keys() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(k))
		b.WriteByte('=')
		b.WriteString(escape(q.values[k]))
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// BuildQuery monta os parâmetros de busca para o termo, aplicando os filtros das palavras-chave.
// O texto das palavras-chave nunca é adicionado ao termo.
func BuildQuery(term string, keywords []string) *Query {
	q := newQuery()
	q.Set("query", term)
	q.Set("resultset", "catalog")
	q.Set("sort", "priceup")
	q.Set("page", "1")
	q.Set("ab_testid", "no_promo")
	q.Set("ab_testing", "false")
	q.Set("appType", "1")
	q.Set("curr", "rub")
	q.Set("dest", "-1257786")
	q.Set("hide_dtype", "9;11")
	q.Set("hide_vflags", "4294967296")
	q.Set("inheritFilters", "false")
	q.Set("lang", "ru")
	q.Set("spp", "30")
	q.Set("suppressSpellcheck", "false")

	for _, kw := range keywords {
		norm := normalizeKeyword(kw)
		if norm == "" {
			continue
		}
		for _, entry := range keywordFilters {
			if normalizeKeyword(entry.keyword) != norm {
				continue
			}
			for _, p := range entry.params {
				q.Merge(p.key, p.value)
			}
		}
	}
	return q
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
