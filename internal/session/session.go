package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TokenCookie é o cookie gerado pelo desafio anti-bot; sem ele o cache é descartado
const TokenCookie = "x_wbaas_token"

// CriticalCookies são registrados no log após cada aquisição
var CriticalCookies = []string{"_wbauid", TokenCookie}

// Cookie é um par nome/valor emitido pelo marketplace
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Session é um conjunto de cookies com o instante em que foi obtido
type Session struct {
	Cookies    []Cookie
	AcquiredAt time.Time
}

// Fresh indica se a sessão ainda está dentro do TTL
func (s *Session) Fresh(now time.Time, ttl time.Duration) bool {
	if s == nil || s.AcquiredAt.IsZero() {
		return false
	}
	return now.Sub(s.AcquiredAt) < ttl
}

// Has verifica se a sessão contém o cookie informado
func (s *Session) Has(name string) bool {
	if s == nil {
		return false
	}
	for _, c := range s.Cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Names lista os nomes dos cookies (para log)
func (s *Session) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		names = append(names, c.Name)
	}
	return names
}

// Header monta o cabeçalho Cookie no formato "a=1; b=2", ignorando pares vazios
func (s *Session) Header() string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		if c.Name == "" || c.Value == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// presentCritical retorna os cookies críticos presentes no conjunto
func presentCritical(cookies []Cookie) []string {
	var present []string
	for _, c := range cookies {
		for _, name := range CriticalCookies {
			if c.Name == name {
				present = append(present, name)
			}
		}
	}
	return present
}

type cacheFile struct {
	Cookies   []Cookie `json:"cookies"`
	Timestamp float64  `json:"timestamp"`
}

// loadCache lê o arquivo de cache. Arquivo inexistente não é erro: retorna nil.
func loadCache(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("cache de cookies inválido: %w", err)
	}

	sec := int64(cf.Timestamp)
	nsec := int64((cf.Timestamp - float64(sec)) * float64(time.Second))
	return &Session{
		Cookies:    cf.Cookies,
		AcquiredAt: time.Unix(sec, nsec),
	}, nil
}

// saveCache grava a sessão criando o diretório pai se necessário
func saveCache(path string, s *Session) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := json.Marshal(cacheFile{
		Cookies:   s.Cookies,
		Timestamp: float64(s.AcquiredAt.UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
