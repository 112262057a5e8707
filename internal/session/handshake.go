package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"bot-marketplace/internal/logger"

	"go.uber.org/zap"
)

// HandshakeAcquirer faz requisições HTTP simples e guarda os cookies que o servidor definir.
// Sem JavaScript o token anti-bot raramente aparece, mas a sessão parcial ainda ajuda.
type HandshakeAcquirer struct {
	HomeURL   string
	SearchURL string
	Pause     time.Duration
	Timeout   time.Duration
	// Domain gravado nos cookies obtidos
	Domain string
}

// NewHandshakeAcquirer cria a estratégia de fallback com os valores padrão
func NewHandshakeAcquirer() *HandshakeAcquirer {
	return &HandshakeAcquirer{
		HomeURL:   HomeURL,
		SearchURL: "https://www.wildberries.ru/catalog/0/search.aspx?search=test",
		Pause:     2 * time.Second,
		Timeout:   15 * time.Second,
		Domain:    ".wildberries.ru",
	}
}

func (h *HandshakeAcquirer) Name() string { return "handshake" }

func (h *HandshakeAcquirer) Acquire(ctx context.Context) ([]Cookie, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar, Timeout: h.Timeout}

	if err := h.get(ctx, client, h.HomeURL); err != nil {
		return nil, err
	}

	if h.SearchURL != "" {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(h.Pause):
		}
		// A segunda página raramente devolve o token; falha aqui não invalida os cookies já obtidos
		if err := h.get(ctx, client, h.SearchURL); err != nil {
			logger.Warn("Segunda requisição do handshake falhou", zap.Error(err))
		}
	}

	seen := make(map[string]bool)
	var cookies []Cookie
	for _, raw := range []string{h.HomeURL, h.SearchURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		for _, c := range jar.Cookies(u) {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value, Domain: h.Domain, Path: "/"})
		}
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("handshake não retornou cookies")
	}
	logger.Info("Cookies obtidos por handshake", zap.Int("total", len(cookies)))
	return cookies, nil
}

func (h *HandshakeAcquirer) get(ctx context.Context, client *http.Client, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
