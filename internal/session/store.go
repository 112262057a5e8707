package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bot-marketplace/internal/logger"
	"bot-marketplace/internal/metrics"

	"go.uber.org/zap"
)

// ErrUnavailable indica que nenhuma estratégia conseguiu obter cookies
var ErrUnavailable = errors.New("sessão indisponível")

// Acquirer é uma estratégia de obtenção de cookies (navegador, handshake HTTP...)
type Acquirer interface {
	Name() string
	Acquire(ctx context.Context) ([]Cookie, error)
}

// StoreConfig agrupa os parâmetros do Store
type StoreConfig struct {
	CachePath string
	TTL       time.Duration
}

// Store mantém a sessão atual em cache e coordena as renovações
type Store struct {
	cfg       StoreConfig
	acquirers []Acquirer

	mu      sync.RWMutex
	current *Session

	group singleflight.Group
	now   func() time.Time
}

// NewStore cria o Store e tenta reaproveitar a sessão gravada em disco
func NewStore(cfg StoreConfig, acquirers ...Acquirer) *Store {
	s := &Store{
		cfg:       cfg,
		acquirers: acquirers,
		now:       time.Now,
	}
	s.loadFromCache()
	return s
}

func (s *Store) loadFromCache() {
	if s.cfg.CachePath == "" {
		return
	}

	cached, err := loadCache(s.cfg.CachePath)
	if err != nil {
		logger.Warn("Não foi possível ler o cache de cookies", zap.Error(err))
		return
	}
	if cached == nil {
		return
	}

	age := s.now().Sub(cached.AcquiredAt)
	if !cached.Fresh(s.now(), s.cfg.TTL) {
		logger.Info("Cache de cookies expirado", zap.Duration("idade", age.Round(time.Second)))
		return
	}
	if !cached.Has(TokenCookie) {
		logger.Warn("Cache de cookies sem token anti-bot, será renovado", zap.String("token", TokenCookie))
		return
	}

	s.current = cached
	logger.Info("Cookies carregados do cache",
		zap.Duration("idade", age.Round(time.Second)),
		zap.Int("cookies", len(cached.Cookies)))
}

// Current retorna a sessão em memória sem tentar renovar
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Stale indica se não há sessão ou se ela passou do TTL
func (s *Store) Stale() bool {
	return !s.Current().Fresh(s.now(), s.cfg.TTL)
}

// Session devolve a sessão atual, renovando antes se estiver ausente ou vencida.
// Uma sessão vencida ainda é devolvida quando a renovação falha.
func (s *Store) Session(ctx context.Context) (*Session, bool) {
	if s.Stale() {
		if err := s.Refresh(ctx, false); err != nil {
			logger.Warn("Falha ao renovar sessão, seguindo com o que houver", zap.Error(err))
		}
	}
	cur := s.Current()
	if cur == nil || len(cur.Cookies) == 0 {
		return nil, false
	}
	return cur, true
}

// CookieHeader retorna o cabeçalho Cookie da sessão atual (vazio se não houver)
func (s *Store) CookieHeader() string {
	return s.Current().Header()
}

// Refresh obtém uma nova sessão. Chamadas concorrentes aguardam a mesma tentativa.
// Sem force, nada é feito enquanto a sessão atual estiver válida.
func (s *Store) Refresh(ctx context.Context, force bool) error {
	_, err, shared := s.group.Do("refresh", func() (interface{}, error) {
		if !force {
			if cur := s.Current(); cur != nil && len(cur.Cookies) > 0 && cur.Fresh(s.now(), s.cfg.TTL) {
				logger.Debug("Cookies ainda válidos, usando cache")
				return nil, nil
			}
		}
		return nil, s.acquire(ctx)
	})
	if shared {
		logger.Debug("Renovação de sessão compartilhada com outra chamada")
	}
	return err
}

func (s *Store) acquire(ctx context.Context) error {
	for _, a := range s.acquirers {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Info("Obtendo cookies", zap.String("estrategia", a.Name()))
		cookies, err := a.Acquire(ctx)
		if err == nil && len(cookies) == 0 {
			err = errors.New("nenhum cookie obtido")
		}
		if err != nil {
			metrics.SessionRefreshes.WithLabelValues(a.Name(), "failed").Inc()
			logger.Warn("Estratégia de cookies falhou", zap.String("estrategia", a.Name()), zap.Error(err))
			continue
		}

		sess := &Session{Cookies: cookies, AcquiredAt: s.now()}
		s.mu.Lock()
		s.current = sess
		s.mu.Unlock()

		metrics.SessionRefreshes.WithLabelValues(a.Name(), "ok").Inc()
		logger.Info("Cookies atualizados",
			zap.String("estrategia", a.Name()),
			zap.Int("cookies", len(cookies)),
			zap.Strings("criticos", presentCritical(cookies)))

		if s.cfg.CachePath != "" {
			if err := saveCache(s.cfg.CachePath, sess); err != nil {
				logger.Warn("Não foi possível gravar o cache de cookies", zap.Error(err))
			}
		}
		return nil
	}

	logger.Error("Falha ao obter cookies por todas as estratégias")
	return ErrUnavailable
}
