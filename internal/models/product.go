package models

import "time"

// TrackedProduct representa uma faixa de preço monitorada.
// Várias faixas podem compartilhar o mesmo nome (mesma busca no marketplace).
type TrackedProduct struct {
	ID           int64
	Name         string // usado como termo de busca
	ThresholdMin float64
	ThresholdMax float64 // igual ao mínimo quando não informado
	Keywords     []string
	Exclusions   []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InBand verifica se o preço está dentro da faixa [min, max]
func (p TrackedProduct) InBand(price float64) bool {
	return price >= p.ThresholdMin && price <= p.ThresholdMax
}

// Characteristic é uma característica do anúncio (ex.: "Тип SIM-карты": ["nano-SIM", "eSIM"])
type Characteristic struct {
	Name   string
	Values []string
}

// RawResult é a projeção tipada de um resultado de busca.
// Doc guarda o documento original para o filtro de palavras-chave.
type RawResult struct {
	ID              int64
	Title           string
	Brand           string
	Seller          string
	SupplierID      int64
	PriceMinor      int64 // em copeques
	Stock           int64
	MetadataName    string
	Characteristics []Characteristic
	Colors          []string

	Doc map[string]any
}

// Offer é o resultado já convertido para unidades inteiras (rublos), sem desconto do site
type Offer struct {
	ProductID  int64
	Name       string
	Price      int64
	Seller     string
	SupplierID int64
	Stock      int64
	URL        string
}

// LedgerEntry registra a última notificação enviada para uma URL
type LedgerEntry struct {
	ID          int64
	URL         string
	ProductName string
	LastPrice   *float64 // nil quando o preço anterior é desconhecido
	LastSentAt  time.Time
	ChannelID   string
}
