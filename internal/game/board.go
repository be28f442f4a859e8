package game

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
)

// Rand is the randomness used for mine and shield placement.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// NoSafeZone disables the first-click guarantee.
const NoSafeZone = -1

// BoardParams describes one board generation request.
type BoardParams struct {
	Rows           int
	Cols           int
	Density        float64
	ShieldQuota    int
	ShieldsEnabled bool
	SafeRow        int
	SafeCol        int
}

// ParamsFor derives generation parameters from the room settings.
func ParamsFor(s *domain.Session) (BoardParams, error) {
	dims, ok := s.BoardSize.Dimensions()
	if !ok {
		return BoardParams{}, fmt.Errorf("%w: unknown board size %q", domain.ErrConfiguration, s.BoardSize)
	}
	density, ok := s.Difficulty.Density()
	if !ok {
		return BoardParams{}, fmt.Errorf("%w: unknown difficulty %q", domain.ErrConfiguration, s.Difficulty)
	}
	return BoardParams{
		Rows:           dims.Rows,
		Cols:           dims.Cols,
		Density:        density,
		ShieldQuota:    dims.Shields,
		ShieldsEnabled: s.ShieldsEnabled,
		SafeRow:        NoSafeZone,
		SafeCol:        NoSafeZone,
	}, nil
}

// WithSafeZone returns p with the safe zone centred on (row, col).
func (p BoardParams) WithSafeZone(row, col int) BoardParams {
	p.SafeRow, p.SafeCol = row, col
	return p
}

// MineCount is floor(rows*cols*density). The epsilon keeps products such as
// 100*0.29 from landing one below the exact value.
func (p BoardParams) MineCount() int {
	return int(math.Floor(float64(p.Rows*p.Cols)*p.Density + 1e-9))
}

func (p BoardParams) ShieldCount() int {
	if !p.ShieldsEnabled {
		return 0
	}
	return p.ShieldQuota
}

func (p BoardParams) hasSafeZone() bool { return p.SafeRow >= 0 }

func (p BoardParams) inSafeZone(row, col int) bool {
	if !p.hasSafeZone() {
		return false
	}
	return abs(row-p.SafeRow) <= 1 && abs(col-p.SafeCol) <= 1
}

// safeZoneCells counts the in-bounds cells of the safe zone.
func (p BoardParams) safeZoneCells() int {
	if !p.hasSafeZone() {
		return 0
	}
	n := 0
	for r := p.SafeRow - 1; r <= p.SafeRow+1; r++ {
		for c := p.SafeCol - 1; c <= p.SafeCol+1; c++ {
			if r >= 0 && r < p.Rows && c >= 0 && c < p.Cols {
				n++
			}
		}
	}
	return n
}

// Validate rejects parameters for which placement cannot terminate.
func (p BoardParams) Validate() error {
	if p.Rows <= 0 || p.Cols <= 0 {
		return fmt.Errorf("%w: board size %dx%d must be positive", domain.ErrConfiguration, p.Rows, p.Cols)
	}
	if p.Density < 0 || p.Density >= 1 || math.IsNaN(p.Density) {
		return fmt.Errorf("%w: mine density %v outside [0,1)", domain.ErrConfiguration, p.Density)
	}
	if p.ShieldQuota < 0 {
		return fmt.Errorf("%w: negative shield quota", domain.ErrConfiguration)
	}
	if p.hasSafeZone() && (p.SafeRow >= p.Rows || p.SafeCol < 0 || p.SafeCol >= p.Cols) {
		return fmt.Errorf("%w: safe cell (%d,%d) outside board", domain.ErrConfiguration, p.SafeRow, p.SafeCol)
	}
	available := p.Rows*p.Cols - p.safeZoneCells()
	if need := p.MineCount() + p.ShieldCount(); need > available {
		return fmt.Errorf("%w: %d mines and shields do not fit in %d free cells",
			domain.ErrConfiguration, need, available)
	}
	return nil
}

// ValidateForAnyFirstClick checks that a first click anywhere on the board
// can still be honoured, using the largest possible safe zone.
func (p BoardParams) ValidateForAnyFirstClick() error {
	worst := p.WithSafeZone(min(1, p.Rows-1), min(1, p.Cols-1))
	if p.Rows <= 0 || p.Cols <= 0 {
		worst = p
	}
	return worst.Validate()
}

// Generate places mines and shields by rejection sampling and fills in
// neighbour counts. rng may be nil.
func Generate(p BoardParams, rng Rand) (*domain.Board, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = globalRand{}
	}

	b := domain.NewBoard(p.Rows, p.Cols)
	place(b, p, rng, p.MineCount(), func(c *domain.Cell) { c.IsMine = true })
	place(b, p, rng, p.ShieldCount(), func(c *domain.Cell) { c.Shield = domain.ShieldHidden })
	ComputeNeighbors(b)
	return b, nil
}

func place(b *domain.Board, p BoardParams, rng Rand, count int, mark func(*domain.Cell)) {
	eligible := func(r, c int) bool {
		cell := b.At(r, c)
		return !cell.IsMine && !cell.IsShield() && !p.inSafeZone(r, c)
	}

	cells := p.Rows * p.Cols
	maxRejections := 64 * cells
	rejections := 0
	for placed := 0; placed < count; {
		if rejections > maxRejections {
			// nearly full board: draw from the remaining cells directly
			placeFromRemaining(b, rng, count-placed, eligible, mark)
			return
		}
		i := rng.IntN(cells)
		r, c := i/p.Cols, i%p.Cols
		if !eligible(r, c) {
			rejections++
			continue
		}
		mark(b.At(r, c))
		placed++
		rejections = 0
	}
}

func placeFromRemaining(b *domain.Board, rng Rand, count int, eligible func(r, c int) bool, mark func(*domain.Cell)) {
	var free []domain.Coord
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			if eligible(r, c) {
				free = append(free, domain.Coord{Row: r, Col: c})
			}
		}
	}
	for i := 0; i < count && len(free) > 0; i++ {
		j := rng.IntN(len(free))
		mark(b.At(free[j].Row, free[j].Col))
		free[j] = free[len(free)-1]
		free = free[:len(free)-1]
	}
}

// ComputeNeighbors sets neighborMines on every cell. Mines keep 0.
func ComputeNeighbors(b *domain.Board) {
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			cell := b.At(r, c)
			if cell.IsMine {
				cell.NeighborMines = 0
				continue
			}
			n := 0
			for _, nb := range b.Neighbors(r, c) {
				if b.At(nb.Row, nb.Col).IsMine {
					n++
				}
			}
			cell.NeighborMines = n
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
