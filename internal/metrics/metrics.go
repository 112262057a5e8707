package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bot-marketplace/internal/logger"

	"go.uber.org/zap"
)

var (
	// Searches conta buscas no marketplace por resultado (ok, empty, blocked, invalid, rate_limited, timeout, error)
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_searches_total",
		Help: "Buscas executadas no marketplace, por resultado.",
	}, []string{"outcome"})

	// SessionRefreshes conta tentativas de obter sessão por estratégia
	SessionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_session_refreshes_total",
		Help: "Tentativas de renovação de sessão, por estratégia e resultado.",
	}, []string{"strategy", "result"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_notifications_total",
		Help: "Notificações de preço, por resultado.",
	}, []string{"result"})

	LedgerPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_ledger_purged_total",
		Help: "Registros de notificação removidos pela limpeza periódica.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketplace_cycle_duration_seconds",
		Help:    "Duração de cada ciclo de monitoramento.",
		Buckets: prometheus.ExponentialBuckets(5, 2, 10),
	})
)

// Serve expõe /metrics até o contexto ser cancelado
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Servidor de métricas iniciado", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Erro no servidor de métricas", zap.Error(err))
	}
}
