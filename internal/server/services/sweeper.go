package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/repomanager"
)

// refreshTokenRetention keeps expired refresh tokens around long enough for
// reuse detection to still see them.
const refreshTokenRetention = 7 * 24 * time.Hour

// Sweeper purges expired challenges and long-expired refresh tokens.
type Sweeper struct {
	base
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, opts ...Option) *Sweeper {
	return &Sweeper{base: newBase("sweeper", opts), db: db, repomanager: m}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now()
	challenges, err := s.repomanager.Challenges(s.db).DeleteExpired(ctx, now)
	if err != nil {
		return err
	}
	tokens, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, now.Add(-refreshTokenRetention))
	if err != nil {
		return err
	}
	if challenges > 0 || tokens > 0 {
		s.log.Debug(ctx, "expired rows purged", "challenges", challenges, "refresh_tokens", tokens)
	}
	return nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error(ctx, "sweep failed", "error", err)
			}
		}
	}
}
