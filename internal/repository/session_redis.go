package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/logger"

	"github.com/redis/go-redis/v9"
)

// Redis layout, one hash per room:
//
//	room:<id>            hash
//	  meta               session JSON without cells
//	  cell:<r>:<c>       cell JSON
//	  version            commit counter
//	room:<id>:commits    pub/sub channel, payload is the new version
const (
	keyRoom         = "room:%s"
	keyRoomCommits  = "room:%s:commits"
	fieldMeta       = "meta"
	fieldVersion    = "version"
	fieldCellPrefix = "cell:"
)

var errStale = errors.New("stale version")

// swapCellScript commits one cell if the game is playing and the stored
// cell still matches. Returns -1 when the room is gone, 0 on a lost race.
var swapCellScript = redis.NewScript(`
	local meta = redis.call("HGET", KEYS[1], "meta")
	if not meta then
		return -1
	end
	local session = cjson.decode(meta)
	if session.gameState ~= "playing" then
		return 0
	end
	local current = redis.call("HGET", KEYS[1], ARGV[1])
	if current ~= ARGV[2] then
		return 0
	end
	redis.call("HSET", KEYS[1], ARGV[1], ARGV[3])
	local version = redis.call("HINCRBY", KEYS[1], "version", 1)
	local ttl = tonumber(ARGV[4])
	if ttl > 0 then
		redis.call("EXPIRE", KEYS[1], ttl)
	end
	redis.call("PUBLISH", KEYS[2], version)
	return 1
`)

// RedisSessionStore shares rooms between server instances.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore uses client for all rooms. Each commit refreshes the
// room key expiry to ttl; ttl <= 0 disables expiry.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func roomKey(id string) string    { return fmt.Sprintf(keyRoom, id) }
func commitsKey(id string) string { return fmt.Sprintf(keyRoomCommits, id) }

func cellField(row, col int) string {
	return fieldCellPrefix + strconv.Itoa(row) + ":" + strconv.Itoa(col)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", domain.ErrStoreUnavailable, op, err)
}

func (r *RedisSessionStore) Create(ctx context.Context, s *domain.Session) (Snapshot, error) {
	key := roomKey(s.ID)
	fields, err := encodeSession(s, 1)
	if err != nil {
		return Snapshot{}, err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrRoomExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			r.expire(ctx, pipe, key)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return Snapshot{Session: s.Clone(), Version: 1}, nil
	case errors.Is(err, domain.ErrRoomExists), errors.Is(err, redis.TxFailedErr):
		return Snapshot{}, fmt.Errorf("%w: %s", domain.ErrRoomExists, s.ID)
	default:
		return Snapshot{}, unavailable("create", err)
	}
}

func (r *RedisSessionStore) Load(ctx context.Context, id string) (Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, roomKey(id)).Result()
	if err != nil {
		return Snapshot{}, unavailable("load", err)
	}
	if len(fields) == 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	return decodeSession(id, fields)
}

func (r *RedisSessionStore) CompareAndSwap(ctx context.Context, id string, expected int64, next *domain.Session) (bool, error) {
	key := roomKey(id)
	fields, err := encodeSession(next, expected+1)
	if err != nil {
		return false, err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		version, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if err == redis.Nil {
			return domain.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		if version != expected {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// cell fields may disappear on reset, so the hash is rewritten whole
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, fields)
			r.expire(ctx, pipe, key)
			pipe.Publish(ctx, commitsKey(id), expected+1)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return false, nil
	case errors.Is(err, domain.ErrRoomNotFound):
		return false, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	default:
		return false, unavailable("compare-and-swap", err)
	}
}

func (r *RedisSessionStore) SwapCell(ctx context.Context, id string, row, col int, expected, next domain.Cell) (bool, error) {
	want, err := json.Marshal(expected)
	if err != nil {
		return false, err
	}
	repl, err := json.Marshal(next)
	if err != nil {
		return false, err
	}

	res, err := swapCellScript.Run(ctx, r.client,
		[]string{roomKey(id), commitsKey(id)},
		cellField(row, col), string(want), string(repl), int64(r.ttl/time.Second),
	).Int()
	if err != nil {
		return false, unavailable("swap cell", err)
	}
	switch res {
	case 1:
		return true, nil
	case -1:
		return false, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	default:
		return false, nil
	}
}

func (r *RedisSessionStore) Subscribe(ctx context.Context, id string) (<-chan Snapshot, error) {
	pubsub := r.client.Subscribe(ctx, commitsKey(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, unavailable("subscribe", err)
	}

	// load after subscribing so no commit falls between the two
	first, err := r.Load(ctx, id)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan Snapshot, 1)
	out <- first
	go func() {
		defer close(out)
		defer pubsub.Close()

		last := first.Version
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				snap, err := r.Load(ctx, id)
				if errors.Is(err, domain.ErrRoomNotFound) {
					return
				}
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn("room subscription reload failed", "room_id", id, "error", err)
					}
					continue
				}
				if snap.Version > last {
					last = snap.Version
					offer(out, snap)
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisSessionStore) DeleteIfVersion(ctx context.Context, id string, expected int64) (bool, error) {
	key := roomKey(id)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		version, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if err == redis.Nil {
			return errStale
		}
		if err != nil {
			return err
		}
		if version != expected {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			// subscribers reload, find nothing and close
			pipe.Publish(ctx, commitsKey(id), 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, unavailable("delete", err)
	}
}

func (r *RedisSessionStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
}

// encodeSession flattens s into hash fields. The meta copy keeps the board
// dimensions and drops the cells.
func encodeSession(s *domain.Session, version int64) (map[string]any, error) {
	meta := *s
	fields := map[string]any{fieldVersion: version}
	if s.Board != nil {
		meta.Board = &domain.Board{Rows: s.Board.Rows, Cols: s.Board.Cols}
		for r, row := range s.Board.Cells {
			for c, cell := range row {
				data, err := json.Marshal(cell)
				if err != nil {
					return nil, fmt.Errorf("encode cell (%d,%d): %w", r, c, err)
				}
				fields[cellField(r, c)] = string(data)
			}
		}
	}
	data, err := json.Marshal(&meta)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	fields[fieldMeta] = string(data)
	return fields, nil
}

func decodeSession(id string, fields map[string]string) (Snapshot, error) {
	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode room %s version: %w", id, err)
	}
	var s domain.Session
	if err := json.Unmarshal([]byte(fields[fieldMeta]), &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode room %s meta: %w", id, err)
	}
	if s.Players == nil {
		s.Players = map[string]domain.Player{}
	}
	if s.PlayerShields == nil {
		s.PlayerShields = map[string]int{}
	}

	if s.Board != nil {
		b := domain.NewBoard(s.Board.Rows, s.Board.Cols)
		for field, raw := range fields {
			if !strings.HasPrefix(field, fieldCellPrefix) {
				continue
			}
			var row, col int
			if _, err := fmt.Sscanf(field, "cell:%d:%d", &row, &col); err != nil || !b.InBounds(row, col) {
				return Snapshot{}, fmt.Errorf("decode room %s: bad field %q", id, field)
			}
			if err := json.Unmarshal([]byte(raw), b.At(row, col)); err != nil {
				return Snapshot{}, fmt.Errorf("decode room %s %s: %w", id, field, err)
			}
		}
		s.Board = b
	}
	return Snapshot{Session: &s, Version: version}, nil
}
