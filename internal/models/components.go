package models

import "strings"

// Connectivity distingue "nano-SIM + eSIM" de "somente eSIM"
type Connectivity string

const (
	ConnectivityDual     Connectivity = "dual"
	ConnectivityESIMOnly Connectivity = "esim"
)

// Components são os atributos canônicos extraídos de um título.
// Campo vazio significa "não especificado".
type Components struct {
	Model        string
	Storage      string
	Color        string
	Connectivity Connectivity
}

// Equal compara os quatro atributos sem diferenciar maiúsculas.
// Dois valores vazios são iguais; vazio nunca é igual a um valor preenchido.
func (c Components) Equal(other Components) bool {
	return strings.EqualFold(c.Model, other.Model) &&
		strings.EqualFold(c.Storage, other.Storage) &&
		strings.EqualFold(c.Color, other.Color) &&
		strings.EqualFold(string(c.Connectivity), string(other.Connectivity))
}
