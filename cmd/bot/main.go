package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bot-marketplace/config"
	"bot-marketplace/internal/bot"
	"bot-marketplace/internal/database"
	"bot-marketplace/internal/logger"
	"bot-marketplace/internal/metrics"
	"bot-marketplace/internal/monitor"
	"bot-marketplace/internal/scraper"
	"bot-marketplace/internal/session"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// Carregar variáveis de ambiente
	if err := godotenv.Load(); err != nil {
		log.Println("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	// Carregar configurações
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro ao carregar configurações: %v", err)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Erro ao inicializar logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Inicializar banco de dados
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("Erro ao inicializar banco de dados", zap.Error(err))
	}
	defer db.Close()

	// Inicializar bot do Telegram
	telegramBot, err := bot.Init(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal("Erro ao inicializar bot do Telegram", zap.Error(err))
	}

	// Sessão: navegador primeiro, handshake HTTP como alternativa
	store := session.NewStore(
		session.StoreConfig{CachePath: cfg.CookiesCacheFile, TTL: cfg.SessionTTL},
		session.NewBrowserAcquirer(cfg.ChromePath),
		session.NewHandshakeAcquirer(),
	)
	newSearcher := func() scraper.Searcher {
		return scraper.NewWildberriesScraper(store)
	}

	// Criar gerenciador de monitoramento
	monitorInstance := monitor.New(monitor.Config{
		ParseLimit:       cfg.ParseLimit,
		MinDelay:         cfg.MinDelay,
		MaxDelay:         cfg.MaxDelay,
		IdleTimeout:      cfg.IdleTimeout,
		SiteBaseDiscount: cfg.SiteBaseDiscount,
		CleanupDays:      cfg.CleanupDays,
	}, db, db, bot.NewTelegramNotifier(telegramBot), nil, newSearcher)

	// Limpeza do registro de notificações: uma vez na partida e depois a cada 24h
	monitorInstance.Housekeep(ctx)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 24h", func() { monitorInstance.Housekeep(ctx) }); err != nil {
		logger.Fatal("Erro ao agendar limpeza", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.MetricsAddr != "" {
		go metrics.Serve(ctx, cfg.MetricsAddr)
	}

	// Iniciar monitoramento em background
	go monitorInstance.Run(ctx)

	// Configurar comandos do bot; retorna quando o contexto é cancelado
	handler := bot.NewHandler(db, monitorInstance, cfg)
	bot.SetupCommands(ctx, telegramBot, handler)

	logger.Info("Encerrando bot...")
}
