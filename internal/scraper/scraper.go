package scraper

import (
	"context"

	"bot-marketplace/internal/models"
	"bot-marketplace/internal/session"
)

// Searcher define a busca no marketplace. Falhas resultam em lista vazia, nunca em erro:
// uma busca ruim não pode interromper o lote.
type Searcher interface {
	Search(ctx context.Context, term string, keywords []string) []models.RawResult
}

// Sessions é o que o scraper precisa do gerenciador de cookies
type Sessions interface {
	Session(ctx context.Context) (*session.Session, bool)
	Refresh(ctx context.Context, force bool) error
	Stale() bool
}
