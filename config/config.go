package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contém as configurações da aplicação
type Config struct {
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	AdminChatIDs     []int64 `env:"ADMIN_TELEGRAM_ID" envSeparator:","`

	DatabasePath     string        `env:"DATABASE_PATH" envDefault:"./parser.db"`
	CookiesCacheFile string        `env:"COOKIES_CACHE_FILE" envDefault:"cookies_cache.json"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	ChromePath       string        `env:"CHROME_PATH"`

	// Pausa aleatória entre buscas, em segundos
	MinDelaySeconds int           `env:"MIN_DELAY" envDefault:"5"`
	MaxDelaySeconds int           `env:"MAX_DELAY" envDefault:"8"`
	ParseLimit      int           `env:"PARSE_LIMIT" envDefault:"200"`
	IdleTimeout     time.Duration `env:"PARSER_IDLE" envDefault:"5s"`
	CleanupDays     int           `env:"PRODUCT_CLEANUP_DAYS" envDefault:"14"`

	SiteBaseDiscount    float64 `env:"SITE_BASE_DISCOUNT" envDefault:"11"`
	PriceUpdateDiscount float64 `env:"PRICE_UPDATE_DISCOUNT" envDefault:"8.5"`
	PriceUpdateBand     float64 `env:"PRICE_UPDATE_BAND" envDefault:"18000"`

	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Derivados de MIN_DELAY/MAX_DELAY
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Load carrega as configurações das variáveis de ambiente
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("erro ao ler variáveis de ambiente: %w", err)
	}

	if cfg.MinDelaySeconds < 1 {
		return nil, fmt.Errorf("MIN_DELAY deve ser pelo menos 1 (recebido %d)", cfg.MinDelaySeconds)
	}
	if cfg.MaxDelaySeconds < cfg.MinDelaySeconds {
		return nil, fmt.Errorf("MAX_DELAY (%d) menor que MIN_DELAY (%d)", cfg.MaxDelaySeconds, cfg.MinDelaySeconds)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL inválido: %v", cfg.SessionTTL)
	}
	if cfg.ParseLimit <= 0 {
		return nil, fmt.Errorf("PARSE_LIMIT inválido: %d", cfg.ParseLimit)
	}
	if cfg.CleanupDays <= 0 {
		return nil, fmt.Errorf("PRODUCT_CLEANUP_DAYS inválido: %d", cfg.CleanupDays)
	}

	cfg.MinDelay = time.Duration(cfg.MinDelaySeconds) * time.Second
	cfg.MaxDelay = time.Duration(cfg.MaxDelaySeconds) * time.Second

	return &cfg, nil
}

// IsAdmin informa se o chat pode usar os comandos administrativos.
// Sem lista configurada, qualquer chat é aceito.
func (c *Config) IsAdmin(chatID int64) bool {
	if len(c.AdminChatIDs) == 0 {
		return true
	}
	for _, id := range c.AdminChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
