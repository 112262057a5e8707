package monitor

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"bot-marketplace/internal/logger"
	"bot-marketplace/internal/matcher"
	"bot-marketplace/internal/metrics"
	"bot-marketplace/internal/models"
	"bot-marketplace/internal/scraper"

	"go.uber.org/zap"
)

// Catalog fornece os produtos monitorados e as configurações globais
type Catalog interface {
	TrackedProducts(ctx context.Context) ([]models.TrackedProduct, error)
	Setting(ctx context.Context, key string) (string, bool, error)
}

// Ledger guarda o último preço notificado por URL
type Ledger interface {
	Notification(ctx context.Context, url string) (*models.LedgerEntry, error)
	UpsertNotification(ctx context.Context, url string, price float64, productName, channelID string) (*models.LedgerEntry, error)
	PurgeNotifications(ctx context.Context, days int) (int64, error)
}

// Notifier envia mensagens ao canal
type Notifier interface {
	Send(ctx context.Context, channelID, text string) error
}

// Config ajusta o ritmo do monitor
type Config struct {
	ParseLimit       int
	MinDelay         time.Duration
	MaxDelay         time.Duration
	IdleTimeout      time.Duration
	SiteBaseDiscount float64
	CleanupDays      int
	ErrorCooldown    time.Duration
}

// CycleSummary resume um ciclo para o log e para o /status
type CycleSummary struct {
	StartedAt     time.Time
	Duration      time.Duration
	Names         int
	Results       int
	Notified      int
	SkippedGuard  int
	SkippedLedger int
	NoChannel     int
	SendFailures  int
	Aborted       bool
}

// Monitor gerencia o monitoramento periódico de produtos
type Monitor struct {
	cfg      Config
	catalog  Catalog
	ledger   Ledger
	notifier Notifier
	control  *Control

	newSearcher func() scraper.Searcher
	searcher    scraper.Searcher

	sleep func(ctx context.Context, d time.Duration) bool

	mu   sync.Mutex
	last CycleSummary
}

// New cria uma nova instância do monitor. newSearcher é chamado de novo a cada reinício.
func New(cfg Config, catalog Catalog, ledger Ledger, notifier Notifier, control *Control, newSearcher func() scraper.Searcher) *Monitor {
	if cfg.ParseLimit <= 0 {
		cfg.ParseLimit = 200
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Second
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = 60 * time.Second
	}
	if control == nil {
		control = NewControl()
	}
	return &Monitor{
		cfg:         cfg,
		catalog:     catalog,
		ledger:      ledger,
		notifier:    notifier,
		control:     control,
		newSearcher: newSearcher,
		searcher:    newSearcher(),
		sleep:       sleepCtx,
	}
}

// Control retorna os sinais do monitor
func (m *Monitor) Control() *Control {
	return m.control
}

// LastCycle retorna o resumo do último ciclo concluído
func (m *Monitor) LastCycle() CycleSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run executa o laço de monitoramento até o contexto ser cancelado
func (m *Monitor) Run(ctx context.Context) {
	logger.Info("Monitor iniciado",
		zap.Int("limite_nomes", m.cfg.ParseLimit),
		zap.Duration("espera", m.cfg.IdleTimeout))

	for {
		restart, ok := m.wait(ctx)
		if !ok {
			logger.Info("Monitor finalizado")
			return
		}
		if restart {
			logger.Info("Sinal de reinício recebido, recriando o scraper")
			m.rebuildSearcher()
			continue
		}

		if err := m.safeCycle(ctx); err != nil {
			logger.Error("Falha inesperada no ciclo de monitoramento", zap.Error(err))
			if !m.sleep(ctx, m.cfg.ErrorCooldown) {
				return
			}
		}
	}
}

// wait bloqueia até um sinal, o tempo ocioso máximo ou o cancelamento
func (m *Monitor) wait(ctx context.Context) (restart bool, ok bool) {
	if m.control.takeRestart() {
		return true, true
	}

	t := time.NewTimer(m.cfg.IdleTimeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false, false
	case <-m.control.restart:
		return true, true
	case <-m.control.parse:
		return false, true
	case <-t.C:
		return false, true
	}
}

func (m *Monitor) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if _, err := m.RunCycle(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Erro ao executar ciclo", zap.Error(err))
	}
	return nil
}

// RunCycle executa uma passada completa: carrega os produtos, agrupa por nome
// e avalia cada resultado contra todas as faixas do nome.
func (m *Monitor) RunCycle(ctx context.Context) (CycleSummary, error) {
	sum := CycleSummary{StartedAt: time.Now()}
	defer func() {
		sum.Duration = time.Since(sum.StartedAt)
		metrics.CycleDuration.Observe(sum.Duration.Seconds())
		m.mu.Lock()
		m.last = sum
		m.mu.Unlock()
	}()

	products, err := m.catalog.TrackedProducts(ctx)
	if err != nil {
		return sum, fmt.Errorf("erro ao buscar produtos: %w", err)
	}
	if len(products) == 0 {
		logger.Debug("Nenhum produto configurado para monitoramento")
		return sum, nil
	}

	groups := groupByName(products, m.cfg.ParseLimit)
	for i, g := range groups {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if m.control.takeRestart() {
			logger.Info("Reinício solicitado, abortando o lote atual")
			m.rebuildSearcher()
			sum.Aborted = true
			break
		}

		sum.Names++
		m.processName(ctx, g, &sum)

		if i < len(groups)-1 && !m.sleep(ctx, m.randomDelay()) {
			return sum, ctx.Err()
		}
	}

	logger.Info("Ciclo concluído",
		zap.Int("nomes", sum.Names),
		zap.Int("resultados", sum.Results),
		zap.Int("notificados", sum.Notified),
		zap.Int("ignorados_modelo", sum.SkippedGuard),
		zap.Int("ignorados_preco", sum.SkippedLedger),
		zap.Int("falhas_envio", sum.SendFailures),
		zap.Bool("abortado", sum.Aborted))
	return sum, nil
}

// Housekeep remove do ledger os registros mais antigos que a retenção configurada
func (m *Monitor) Housekeep(ctx context.Context) {
	count, err := m.ledger.PurgeNotifications(ctx, m.cfg.CleanupDays)
	if err != nil {
		logger.Error("Erro na limpeza de notificações", zap.Error(err))
		return
	}
	metrics.LedgerPurged.Add(float64(count))
	if count > 0 {
		logger.Info("Notificações antigas removidas", zap.Int64("quantidade", count), zap.Int("dias", m.cfg.CleanupDays))
	}
}

type nameGroup struct {
	name  string
	bands []models.TrackedProduct
}

// groupByName agrupa as faixas pelo nome, na ordem em que aparecem, até limit nomes
func groupByName(products []models.TrackedProduct, limit int) []nameGroup {
	var groups []nameGroup
	index := make(map[string]int)
	for _, p := range products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			groups[i].bands = append(groups[i].bands, p)
			continue
		}
		if len(groups) >= limit {
			continue
		}
		index[name] = len(groups)
		groups = append(groups, nameGroup{name: name, bands: []models.TrackedProduct{p}})
	}
	return groups
}

func (m *Monitor) processName(ctx context.Context, g nameGroup, sum *CycleSummary) {
	first := g.bands[0]
	results := m.searcher.Search(ctx, g.name, first.Keywords)
	if len(results) == 0 {
		logger.Warn("Nenhum produto encontrado", zap.String("busca", g.name))
		return
	}
	results = matcher.FilterByKeywords(results, first.Keywords)
	results = matcher.FilterByExclusions(results, first.Exclusions)
	sum.Results += len(results)
	logger.Info("Produtos encontrados após filtros", zap.String("busca", g.name), zap.Int("quantidade", len(results)))

	discount := m.siteDiscount(ctx)
	channel := m.channel(ctx)

	for _, raw := range results {
		offer, ok := scraper.ToOffer(raw)
		if !ok {
			logger.Debug("Resultado sem preço válido", zap.Int64("id", raw.ID))
			continue
		}
		price := DiscountedPrice(float64(offer.Price), discount)

		for _, band := range g.bands {
			if !ModelMatches(band.Name, offer.Name) {
				logger.Debug("Modelo diferente do monitorado",
					zap.String("encontrado", offer.Name),
					zap.String("monitorado", band.Name))
				sum.SkippedGuard++
				continue
			}
			if !band.InBand(price) {
				continue
			}
			if channel == "" {
				logger.Debug("Canal de notificação não configurado")
				sum.NoChannel++
				continue
			}
			m.notify(ctx, offer, band, price, channel, sum)
		}
	}
}

func (m *Monitor) notify(ctx context.Context, offer models.Offer, band models.TrackedProduct, price float64, channel string, sum *CycleSummary) {
	entry, err := m.ledger.Notification(ctx, offer.URL)
	if err != nil {
		logger.Error("Erro ao consultar notificação enviada", zap.String("url", offer.URL), zap.Error(err))
		return
	}
	if !ShouldNotify(entry, price) {
		logger.Debug("Preço não caiu desde a última notificação",
			zap.String("url", offer.URL),
			zap.Float64("preco", price),
			zap.Float64("anterior", *entry.LastPrice))
		sum.SkippedLedger++
		return
	}

	if entry == nil {
		logger.Info("Primeira notificação", zap.String("url", offer.URL))
	} else if entry.LastPrice == nil {
		logger.Info("Preço anterior desconhecido, notificando", zap.String("url", offer.URL))
	} else {
		logger.Info("Preço caiu", zap.String("url", offer.URL), zap.Float64("anterior", *entry.LastPrice), zap.Float64("atual", price))
	}

	if err := m.notifier.Send(ctx, channel, composeMessage(offer, price, band)); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		logger.Error("Erro ao enviar notificação", zap.String("url", offer.URL), zap.Error(err))
		sum.SendFailures++
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	sum.Notified++

	if _, err := m.ledger.UpsertNotification(ctx, offer.URL, price, offer.Name, channel); err != nil {
		logger.Error("Erro ao registrar notificação enviada", zap.String("url", offer.URL), zap.Error(err))
	}
}

// siteDiscount lê o desconto do site; valores como "11%" ou "8,5" são aceitos
func (m *Monitor) siteDiscount(ctx context.Context) float64 {
	raw, ok, err := m.catalog.Setting(ctx, models.SettingSiteBaseDiscount)
	if err != nil {
		logger.Warn("Erro ao ler desconto do site, usando padrão", zap.Error(err))
		return m.cfg.SiteBaseDiscount
	}
	if !ok {
		return m.cfg.SiteBaseDiscount
	}
	v, err := ParseDiscount(raw)
	if err != nil {
		logger.Warn("Desconto do site inválido, usando padrão", zap.String("valor", raw))
		return m.cfg.SiteBaseDiscount
	}
	return v
}

func (m *Monitor) channel(ctx context.Context) string {
	raw, ok, err := m.catalog.Setting(ctx, models.SettingNotificationChannel)
	if err != nil {
		logger.Warn("Erro ao ler canal de notificação", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(raw)
}

// ParseDiscount interpreta um percentual entre 0 e 100
func ParseDiscount(raw string) (float64, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("desconto inválido %q: %w", raw, err)
	}
	if v < 0 || v >= 100 {
		return 0, fmt.Errorf("desconto fora do intervalo: %v", v)
	}
	return v, nil
}

func (m *Monitor) rebuildSearcher() {
	if c, ok := m.searcher.(interface{ Close() }); ok {
		c.Close()
	}
	m.searcher = m.newSearcher()
}

func (m *Monitor) randomDelay() time.Duration {
	lo, hi := m.cfg.MinDelay, m.cfg.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
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
