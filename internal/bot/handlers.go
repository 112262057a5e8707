package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"bot-marketplace/config"
	"bot-marketplace/internal/database"
	"bot-marketplace/internal/logger"
	"bot-marketplace/internal/matcher"
	"bot-marketplace/internal/models"
	"bot-marketplace/internal/monitor"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxMessageLen fica abaixo do limite de 4096 caracteres do Telegram
const maxMessageLen = 4000

// Store reúne as operações de banco usadas pelos comandos
type Store interface {
	TrackedProducts(ctx context.Context) ([]models.TrackedProduct, error)
	AddProduct(ctx context.Context, p models.TrackedProduct) (int64, error)
	UpdateProductBand(ctx context.Context, id int64, lo, hi float64) error
	DeleteProduct(ctx context.Context, id int64) error
	DeleteAllProducts(ctx context.Context) (int64, error)
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	CountNotifications(ctx context.Context) (int64, error)
}

// Handler executa os comandos administrativos
type Handler struct {
	store   Store
	control *monitor.Control
	status  func() monitor.CycleSummary
	cfg     *config.Config
}

// NewHandler cria o handler de comandos ligado ao monitor
func NewHandler(store Store, mon *monitor.Monitor, cfg *config.Config) *Handler {
	return &Handler{
		store:   store,
		control: mon.Control(),
		status:  mon.LastCycle,
		cfg:     cfg,
	}
}

// escapeHTML escapa caracteres especiais do HTML
func escapeHTML(text string) string {
	return html.EscapeString(text)
}

// SetupCommands lê as atualizações do bot até o contexto ser cancelado
func SetupCommands(ctx context.Context, api *tgbotapi.BotAPI, h *Handler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			reply := h.Execute(ctx, update.Message.Chat.ID, update.Message.Text)
			if reply == "" {
				continue
			}
			for _, part := range splitMessage(reply, maxMessageLen) {
				if err := sendHTML(api, tgbotapi.NewMessage(update.Message.Chat.ID, part)); err != nil {
					logger.Error("Erro ao responder comando", zap.Int64("chat", update.Message.Chat.ID), zap.Error(err))
				}
			}
		}
	}
}

// Execute interpreta uma mensagem e retorna a resposta em HTML
func (h *Handler) Execute(ctx context.Context, chatID int64, text string) string {
	command, args := splitCommand(text)
	if command == "" {
		return ""
	}

	// Comandos públicos (não precisam de autorização)
	isPublicCommand := command == "/start" || command == "/help"
	if !isPublicCommand && !h.cfg.IsAdmin(chatID) {
		logger.Warn("Comando de chat não autorizado", zap.Int64("chat", chatID), zap.String("comando", command))
		return "Você não está autorizado a usar este bot."
	}

	switch command {
	case "/start", "/help":
		return helpText
	case "/status":
		return h.handleStatus(ctx)
	case "/list":
		return h.handleList(ctx)
	case "/add":
		return h.handleAdd(ctx, args)
	case "/remove":
		return h.handleRemove(ctx, args)
	case "/prices":
		return h.handlePrices(ctx, args)
	case "/discount":
		return h.handleDiscount(ctx, args)
	case "/channel":
		return h.handleChannel(ctx, args)
	case "/parse":
		h.control.NotifyNow()
		return "⏩ Ciclo de busca antecipado."
	case "/restart":
		h.control.RequestRestart()
		return "🔄 Reinício do monitor solicitado."
	case "/clear":
		return h.handleClear(ctx)
	default:
		return "Comando não reconhecido. Use /help para ver os comandos disponíveis."
	}
}

const helpText = `🤖 <b>Monitor de Preços Wildberries</b>

<b>Comandos disponíveis:</b>

<b>/add</b> nome | mín | máx | palavras | exclusões
Exemplo: /add iPhone 17 Pro 256GB | 90000 | 100000 | 256GB, Silver | восстановленный

<b>/list</b> - Listar as faixas monitoradas
<b>/remove &lt;id&gt;</b> - Remover uma faixa
<b>/prices</b> - Atualizar faixas a partir de uma lista de preços (uma linha por produto, "produto — preço")
<b>/discount &lt;%&gt;</b> - Ver ou alterar o desconto do site
<b>/channel &lt;id&gt;</b> - Ver ou alterar o canal de notificações
<b>/parse</b> - Buscar agora
<b>/restart</b> - Reiniciar o monitor
<b>/clear</b> - Remover todas as faixas
<b>/status</b> - Resumo do último ciclo
<b>/help</b> - Mostrar esta mensagem de ajuda
`

func (h *Handler) handleStatus(ctx context.Context) string {
	var b strings.Builder
	b.WriteString("📊 <b>Status</b>\n\n")

	products, err := h.store.TrackedProducts(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Erro ao listar produtos: %s", escapeHTML(err.Error()))
	}
	fmt.Fprintf(&b, "Faixas monitoradas: %d\n", len(products))
	if n, err := h.store.CountNotifications(ctx); err == nil {
		fmt.Fprintf(&b, "URLs notificadas: %d\n", n)
	}

	channel, ok, _ := h.store.Setting(ctx, models.SettingNotificationChannel)
	if !ok {
		channel = "não configurado"
	}
	fmt.Fprintf(&b, "Canal: %s\n", escapeHTML(channel))
	fmt.Fprintf(&b, "Desconto do site: %s\n", escapeHTML(h.currentDiscount(ctx)))

	last := h.status()
	if last.StartedAt.IsZero() {
		b.WriteString("\nNenhum ciclo concluído ainda.")
		return b.String()
	}
	fmt.Fprintf(&b, "\n🕐 Último ciclo: %s (%s)\n", last.StartedAt.Format("02/01/2006 15:04"), last.Duration.Round(time.Second))
	fmt.Fprintf(&b, "Buscas: %d | Resultados: %d\n", last.Names, last.Results)
	fmt.Fprintf(&b, "Enviadas: %d | Falhas: %d\n", last.Notified, last.SendFailures)
	fmt.Fprintf(&b, "Outro modelo: %d | Preço não caiu: %d | Sem canal: %d\n", last.SkippedGuard, last.SkippedLedger, last.NoChannel)
	if last.Aborted {
		b.WriteString("⚠️ Ciclo interrompido por reinício\n")
	}
	return b.String()
}

func (h *Handler) handleList(ctx context.Context) string {
	products, err := h.store.TrackedProducts(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Erro ao listar produtos: %s", escapeHTML(err.Error()))
	}
	if len(products) == 0 {
		return "📋 Nenhum produto sendo monitorado no momento."
	}

	var response strings.Builder
	response.WriteString("📋 <b>Produtos em Monitoramento:</b>\n\n")
	for _, p := range products {
		fmt.Fprintf(&response, "🆔 <b>%d</b> · %s\n", p.ID, escapeHTML(p.Name))
		fmt.Fprintf(&response, "🎯 %s₽ a %s₽\n", formatRub(p.ThresholdMin), formatRub(p.ThresholdMax))
		if len(p.Keywords) > 0 {
			fmt.Fprintf(&response, "🔑 %s\n", escapeHTML(strings.Join(p.Keywords, ", ")))
		}
		if len(p.Exclusions) > 0 {
			fmt.Fprintf(&response, "🚫 %s\n", escapeHTML(strings.Join(p.Exclusions, ", ")))
		}
		response.WriteString("\n")
	}
	return response.String()
}

func (h *Handler) handleAdd(ctx context.Context, args string) string {
	p, err := parseAddArgs(args)
	if err != nil {
		return fmt.Sprintf("❌ %s\n\nUso: /add nome | mín | máx | palavras | exclusões", escapeHTML(err.Error()))
	}
	id, err := h.store.AddProduct(ctx, p)
	if err != nil {
		logger.Error("Erro ao adicionar produto", zap.String("nome", p.Name), zap.Error(err))
		return fmt.Sprintf("❌ Erro ao adicionar produto: %s", escapeHTML(err.Error()))
	}
	if p.ThresholdMax == 0 {
		p.ThresholdMax = p.ThresholdMin
	}
	logger.Info("Produto adicionado", zap.Int64("id", id), zap.String("nome", p.Name))
	return fmt.Sprintf("✅ Produto adicionado com sucesso!\n\n🆔 %d · %s\n🎯 %s₽ a %s₽",
		id, escapeHTML(p.Name), formatRub(p.ThresholdMin), formatRub(p.ThresholdMax))
}

func (h *Handler) handleRemove(ctx context.Context, args string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return "❌ ID inválido.\n\nUso: /remove &lt;id&gt;"
	}
	if err := h.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "❌ Produto não encontrado."
		}
		return fmt.Sprintf("❌ Erro ao remover produto: %s", escapeHTML(err.Error()))
	}
	return fmt.Sprintf("✅ Produto %d removido.", id)
}

func (h *Handler) handlePrices(ctx context.Context, args string) string {
	entries, rejected := matcher.ParsePriceList(args)
	if len(entries) == 0 {
		return "❌ Nenhuma linha de preço reconhecida. Use uma linha por produto: produto — preço"
	}

	products, err := h.store.TrackedProducts(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Erro ao listar produtos: %s", escapeHTML(err.Error()))
	}

	plan := matcher.PlanPriceUpdate(entries, products, h.cfg.PriceUpdateDiscount, h.cfg.PriceUpdateBand)

	var b strings.Builder
	updated := 0
	for _, u := range plan.Updates {
		if err := h.store.UpdateProductBand(ctx, u.Product.ID, u.Min, u.Max); err != nil {
			logger.Error("Erro ao atualizar faixa", zap.Int64("id", u.Product.ID), zap.Error(err))
			fmt.Fprintf(&b, "❌ %d · %s: %s\n", u.Product.ID, escapeHTML(u.Product.Name), escapeHTML(err.Error()))
			continue
		}
		updated++
		fmt.Fprintf(&b, "✅ %d · %s: %s₽ a %s₽\n", u.Product.ID, escapeHTML(u.Product.Name), formatRub(u.Min), formatRub(u.Max))
	}
	for _, line := range plan.Unmatched {
		fmt.Fprintf(&b, "❓ Sem produto: %s\n", escapeHTML(line))
	}
	for _, line := range rejected {
		fmt.Fprintf(&b, "⚠️ Linha ignorada: %s\n", escapeHTML(line))
	}

	if updated > 0 {
		h.control.NotifyNow()
	}
	logger.Info("Lista de preços aplicada",
		zap.Int("atualizadas", updated),
		zap.Int("sem_produto", len(plan.Unmatched)),
		zap.Int("ignoradas", len(rejected)))

	return fmt.Sprintf("💰 <b>Faixas atualizadas: %d</b>\n\n%s", updated, b.String())
}

func (h *Handler) handleDiscount(ctx context.Context, args string) string {
	args = strings.TrimSpace(args)
	if args == "" {
		return fmt.Sprintf("Desconto do site: %s", escapeHTML(h.currentDiscount(ctx)))
	}
	v, err := monitor.ParseDiscount(args)
	if err != nil {
		return "❌ Desconto inválido. Use um valor entre 0 e 100."
	}
	value := strconv.FormatFloat(v, 'f', -1, 64)
	if err := h.store.SetSetting(ctx, models.SettingSiteBaseDiscount, value); err != nil {
		return fmt.Sprintf("❌ Erro ao gravar desconto: %s", escapeHTML(err.Error()))
	}
	return fmt.Sprintf("✅ Desconto do site: %s%%", value)
}

func (h *Handler) handleChannel(ctx context.Context, args string) string {
	args = strings.TrimSpace(args)
	if args == "" {
		channel, ok, err := h.store.Setting(ctx, models.SettingNotificationChannel)
		if err != nil {
			return fmt.Sprintf("❌ Erro ao ler canal: %s", escapeHTML(err.Error()))
		}
		if !ok {
			return "Canal de notificações não configurado.\n\nUso: /channel &lt;id ou @canal&gt;"
		}
		return fmt.Sprintf("Canal de notificações: %s", escapeHTML(channel))
	}
	if _, err := strconv.ParseInt(args, 10, 64); err != nil && !strings.HasPrefix(args, "@") {
		return "❌ Canal inválido. Use o id numérico ou @canal."
	}
	if err := h.store.SetSetting(ctx, models.SettingNotificationChannel, args); err != nil {
		return fmt.Sprintf("❌ Erro ao gravar canal: %s", escapeHTML(err.Error()))
	}
	return fmt.Sprintf("✅ Canal de notificações: %s", escapeHTML(args))
}

func (h *Handler) handleClear(ctx context.Context) string {
	n, err := h.store.DeleteAllProducts(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Erro ao remover produtos: %s", escapeHTML(err.Error()))
	}
	logger.Info("Todas as faixas removidas", zap.Int64("total", n))
	return fmt.Sprintf("🗑 %d faixas removidas.", n)
}

func (h *Handler) currentDiscount(ctx context.Context) string {
	raw, ok, err := h.store.Setting(ctx, models.SettingSiteBaseDiscount)
	if err == nil && ok {
		if v, err := monitor.ParseDiscount(raw); err == nil {
			return strconv.FormatFloat(v, 'f', -1, 64) + "%"
		}
	}
	return strconv.FormatFloat(h.cfg.SiteBaseDiscount, 'f', -1, 64) + "% (padrão)"
}

// splitCommand separa o comando (sem @bot) do restante do texto, preservando quebras de linha
func splitCommand(text string) (command, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	end := strings.IndexAny(text, " \t\n")
	if end < 0 {
		end = len(text)
	}
	command = strings.ToLower(text[:end])
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}
	return command, strings.TrimSpace(text[end:])
}

// parseAddArgs lê "nome | mín | máx | palavras | exclusões"; só nome e mínimo são obrigatórios
func parseAddArgs(args string) (models.TrackedProduct, error) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 || parts[0] == "" {
		return models.TrackedProduct{}, errors.New("informe pelo menos nome e preço mínimo")
	}
	if len(parts) > 5 {
		return models.TrackedProduct{}, errors.New("campos demais")
	}

	p := models.TrackedProduct{Name: parts[0]}
	var err error
	if p.ThresholdMin, err = parseRub(parts[1]); err != nil {
		return models.TrackedProduct{}, fmt.Errorf("preço mínimo inválido: %q", parts[1])
	}
	if len(parts) > 2 && parts[2] != "" {
		if p.ThresholdMax, err = parseRub(parts[2]); err != nil {
			return models.TrackedProduct{}, fmt.Errorf("preço máximo inválido: %q", parts[2])
		}
		if p.ThresholdMax < p.ThresholdMin {
			return models.TrackedProduct{}, errors.New("preço máximo menor que o mínimo")
		}
	}
	if len(parts) > 3 {
		p.Keywords = splitList(parts[3])
	}
	if len(parts) > 4 {
		p.Exclusions = splitList(parts[4])
	}
	return p, nil
}

// parseRub aceita "99990", "99 990" e "99990,50"
func parseRub(s string) (float64, error) {
	s = strings.NewReplacer(" ", "", "\u00a0", "", "₽", "", ",", ".").Replace(strings.TrimSpace(s))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("preço negativo: %v", v)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// formatRub formata rublos inteiros com espaço como separador de milhar
func formatRub(v float64) string {
	s := strconv.FormatInt(int64(v), 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// splitMessage quebra o texto em partes de até limit bytes, cortando em fim de linha
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if cur.Len()+len(line) > limit && cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		for len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
