package repository

import (
	"context"
	"encoding/json"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GameResultRepository struct {
	db *pgxpool.Pool
}

func NewGameResultRepository(db *pgxpool.Pool) *GameResultRepository {
	return &GameResultRepository{db: db}
}

const gameResultColumns = `id, room_id, outcome, difficulty, board_size, rows, cols, mines,
	lives_left, max_lives, triggered_by, reveals, players, started_at, ended_at, created_at`

// Create сохраняет завершённую игру
func (r *GameResultRepository) Create(ctx context.Context, rec *domain.GameRecord) error {
	revealsJSON, err := json.Marshal(rec.Reveals)
	if err != nil {
		revealsJSON = []byte("{}")
	}
	players := rec.Players
	if players == nil {
		players = []string{}
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO game_results
			(room_id, outcome, difficulty, board_size, rows, cols, mines,
			 lives_left, max_lives, triggered_by, reveals, players, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id, created_at`,
		rec.RoomID,
		rec.Outcome,
		rec.Difficulty,
		rec.BoardSize,
		rec.Rows,
		rec.Cols,
		rec.Mines,
		rec.LivesLeft,
		rec.MaxLives,
		rec.TriggeredBy,
		revealsJSON,
		players,
		rec.StartedAt,
		rec.EndedAt,
	).Scan(&rec.ID, &rec.CreatedAt)
}

// GetByRoom возвращает историю комнаты, новые первыми
func (r *GameResultRepository) GetByRoom(ctx context.Context, roomID string, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+gameResultColumns+`
		 FROM game_results
		 WHERE room_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGameResults(rows)
}

// GetRecent возвращает последние игры по всем комнатам
func (r *GameResultRepository) GetRecent(ctx context.Context, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+gameResultColumns+`
		 FROM game_results
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGameResults(rows)
}

func scanGameResults(rows pgx.Rows) ([]*domain.GameRecord, error) {
	var result []*domain.GameRecord

	for rows.Next() {
		var (
			rec         domain.GameRecord
			revealsJSON []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.RoomID, &rec.Outcome, &rec.Difficulty, &rec.BoardSize,
			&rec.Rows, &rec.Cols, &rec.Mines, &rec.LivesLeft, &rec.MaxLives,
			&rec.TriggeredBy, &revealsJSON, &rec.Players,
			&rec.StartedAt, &rec.EndedAt, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(revealsJSON) > 0 {
			_ = json.Unmarshal(revealsJSON, &rec.Reveals)
		}
		result = append(result, &rec)
	}

	return result, rows.Err()
}
