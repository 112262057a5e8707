package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"bot-marketplace/internal/logger"
	"bot-marketplace/internal/metrics"
	"bot-marketplace/internal/models"
	"bot-marketplace/internal/session"

	"go.uber.org/zap"
)

const (
	BaseURL = "https://www.wildberries.ru/__internal/u-search/exactmatch/ru/common/v18/search"

	// StatusSessionInvalid é o status próprio do marketplace para sessão recusada
	StatusSessionInvalid = 498

	maxBodySize = 16 << 20
)

// WildberriesScraper executa buscas na API interna do marketplace
type WildberriesScraper struct {
	client   *http.Client
	sessions Sessions
	baseURL  string
	deviceID string

	// Tempos de espera; alterados nos testes
	RateLimitCooldown time.Duration
	RefreshPause      time.Duration
	TimeoutBackoff    []time.Duration

	sleep func(ctx context.Context, d time.Duration) bool
}

// NewWildberriesScraper cria o scraper com timeouts de conexão/leitura/total de 5s/10s/15s
func NewWildberriesScraper(sessions Sessions) *WildberriesScraper {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}
	return &WildberriesScraper{
		client:            &http.Client{Transport: transport, Timeout: 15 * time.Second},
		sessions:          sessions,
		baseURL:           BaseURL,
		deviceID:          "site_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		RateLimitCooldown: 60 * time.Second,
		RefreshPause:      2 * time.Second,
		TimeoutBackoff:    []time.Duration{2 * time.Second, 5 * time.Second},
		sleep:             sleepCtx,
	}
}

// WithBaseURL troca o endpoint de busca (usado em testes)
func (w *WildberriesScraper) WithBaseURL(u string) *WildberriesScraper {
	w.baseURL = u
	return w
}

// WithClient troca o cliente HTTP
func (w *WildberriesScraper) WithClient(c *http.Client) *WildberriesScraper {
	w.client = c
	return w
}

// DeviceID retorna o identificador de dispositivo fixo deste processo
func (w *WildberriesScraper) DeviceID() string {
	return w.deviceID
}

// Close libera as conexões ociosas
func (w *WildberriesScraper) Close() {
	w.client.CloseIdleConnections()
}

// Search busca o termo aplicando os filtros das palavras-chave.
//
// Política de falhas:
//   - 200 com JSON: retorna "products" (pode ser vazio)
//   - 200 com HTML de bloqueio: renova a sessão e repete uma vez
//   - 498: renova a sessão, espera e repete uma vez; nova falha retorna vazio
//   - 429: espera o cooldown e repete a mesma consulta, sem limite
//   - outro status: vazio
//   - timeout: até 2 novas tentativas; a segunda renova a sessão se estiver vencida
func (w *WildberriesScraper) Search(ctx context.Context, term string, keywords []string) []models.RawResult {
	q := BuildQuery(term, keywords)
	endpoint := w.baseURL + "?" + q.Encode()

	timeouts := 0
	blockedRetried := false
	sessionRetried := false

	for {
		if ctx.Err() != nil {
			return nil
		}

		status, body, err := w.fetch(ctx, term, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !isTimeout(err) {
				metrics.Searches.WithLabelValues("error").Inc()
				logger.Error("Erro na busca", zap.String("termo", term), zap.Error(err))
				return nil
			}

			logger.Warn("Timeout na busca", zap.String("termo", term), zap.Int("tentativas", timeouts))
			if timeouts >= len(w.TimeoutBackoff) {
				metrics.Searches.WithLabelValues("timeout").Inc()
				return nil
			}
			if timeouts == 0 {
				logger.Info("Repetindo sem renovar cookies")
			} else if w.sessions.Stale() {
				logger.Info("Renovando cookies antes de repetir")
				if err := w.sessions.Refresh(ctx, true); err != nil {
					logger.Warn("Falha ao renovar cookies após timeout", zap.Error(err))
				}
			} else {
				logger.Info("Cookies ainda válidos, repetindo sem navegador")
			}
			if !w.sleep(ctx, w.TimeoutBackoff[timeouts]) {
				return nil
			}
			timeouts++
			continue
		}

		switch status {
		case http.StatusOK:
			products, perr := decodeProducts(body)
			if perr == nil {
				outcome := "ok"
				if len(products) == 0 {
					outcome = "empty"
				}
				metrics.Searches.WithLabelValues(outcome).Inc()
				return products
			}

			logger.Error("Resposta não é JSON válido",
				zap.String("termo", term),
				zap.Error(perr),
				zap.String("previa", preview(body, 500)))

			blocked, summary := blockedPage(body)
			if !blocked || blockedRetried || sessionRetried {
				metrics.Searches.WithLabelValues("error").Inc()
				return nil
			}
			metrics.Searches.WithLabelValues("blocked").Inc()
			logger.Warn("Página de bloqueio no lugar do JSON, renovando cookies", zap.String("pagina", summary))
			blockedRetried = true
			if err := w.sessions.Refresh(ctx, true); err != nil {
				logger.Warn("Falha ao renovar cookies", zap.Error(err))
			}
			if !w.sleep(ctx, w.RefreshPause) {
				return nil
			}

		case StatusSessionInvalid:
			metrics.Searches.WithLabelValues("invalid").Inc()
			if sessionRetried {
				logger.Error("Sessão recusada novamente após renovação", zap.String("termo", term))
				return nil
			}
			logger.Warn("Status 498, forçando renovação de cookies", zap.String("termo", term))
			sessionRetried = true
			if err := w.sessions.Refresh(ctx, true); err != nil {
				logger.Warn("Falha ao renovar cookies", zap.Error(err))
			}
			if !w.sleep(ctx, w.RefreshPause) {
				return nil
			}

		case http.StatusTooManyRequests:
			metrics.Searches.WithLabelValues("rate_limited").Inc()
			if sessionRetried {
				logger.Error("Repetição após 498 falhou com 429", zap.String("termo", term))
				return nil
			}
			logger.Warn("Limite de requisições (429), aguardando", zap.Duration("espera", w.RateLimitCooldown))
			if !w.sleep(ctx, w.RateLimitCooldown) {
				return nil
			}

		default:
			metrics.Searches.WithLabelValues("error").Inc()
			logger.Error("API retornou status inesperado",
				zap.Int("status", status),
				zap.String("termo", term),
				zap.String("resposta", preview(body, 500)))
			return nil
		}
	}
}

func (w *WildberriesScraper) fetch(ctx context.Context, term, endpoint string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, "", err
	}

	cookie := ""
	if sess, ok := w.sessions.Session(ctx); ok {
		cookie = sess.Header()
	} else {
		logger.Warn("Nenhum cookie disponível, buscando sem sessão")
	}
	req.Header = w.headers(term, cookie)

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(data), nil
}

func (w *WildberriesScraper) headers(term, cookie string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("User-Agent", session.UserAgent)
	h.Set("Cache-Control", "no-cache")
	h.Set("DNT", "1")
	h.Set("Priority", "u=1, i")
	h.Set("Sec-CH-UA", `"Chromium";v="143", "Not A(Brand";v="24"`)
	h.Set("Sec-CH-UA-Mobile", "?0")
	h.Set("Sec-CH-UA-Platform", `"macOS"`)
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("X-Spa-Version", "13.22.10")
	h.Set("X-UserID", "0")

	h.Set("X-QueryID", w.queryID())
	h.Set("DeviceID", w.deviceID)
	h.Set("Referer", "https://www.wildberries.ru/catalog/0/search.aspx?search="+escape(term))
	if cookie != "" {
		h.Set("Cookie", cookie)
	}
	return h
}

// queryID gera um identificador novo por requisição
func (w *WildberriesScraper) queryID() string {
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "qid" + strings.TrimPrefix(w.deviceID, "site_") + strconv.FormatInt(time.Now().UnixMilli(), 10) + rnd
}

func decodeProducts(body string) ([]models.RawResult, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("corpo vazio")
	}

	var payload struct {
		Products []any `json:"products"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("decodificar JSON: %w", err)
	}

	results := make([]models.RawResult, 0, len(payload.Products))
	for _, p := range payload.Products {
		if doc, ok := p.(map[string]any); ok {
			results = append(results, Project(doc))
		}
	}
	return results, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
