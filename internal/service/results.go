package service

import (
	"context"
	"log/slog"

	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"github.com/rocketscienceinc/connectfour-backend/internal/repository"
)

// ResultsService persists finished games and updates player stats.
// Failures are logged and swallowed: losing a stats row must never
// break the game flow.
type ResultsService interface {
	Record(ctx context.Context, game *entity.Game)
}

type resultsService struct {
	logger *slog.Logger
	games  repository.GameRepository
	stats  repository.StatsRepository
}

func NewResultsService(logger *slog.Logger, games repository.GameRepository, stats repository.StatsRepository) ResultsService {
	return &resultsService{
		logger: logger.With("component", "results"),
		games:  games,
		stats:  stats,
	}
}

func (that *resultsService) Record(ctx context.Context, game *entity.Game) {
	log := that.logger.With("gameID", game.ID)

	if err := that.games.Insert(ctx, game); err != nil {
		log.Error("failed to save game", "error", err)
	}

	for _, player := range game.Players {
		if player == nil || player.IsBot() || player.Username == "" {
			continue
		}

		wins := 0
		if !game.IsDraw && game.Winner == player.Username {
			wins = 1
		}

		if err := that.stats.Increment(ctx, player.Username, wins, 1); err != nil {
			log.Error("failed to update player stats", "username", player.Username, "error", err)
		}
	}
}
