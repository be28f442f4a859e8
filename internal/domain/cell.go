package domain

// ShieldPhase tracks the discovery and pickup of a shield cell.
// Cells without a shield carry the zero value.
type ShieldPhase string

const (
	ShieldNone      ShieldPhase = ""
	ShieldHidden    ShieldPhase = "hidden"
	ShieldRevealed  ShieldPhase = "revealed"
	ShieldCollected ShieldPhase = "collected"
)

// Cell is one square of the shared board.
type Cell struct {
	IsMine        bool        `json:"isMine"`
	Shield        ShieldPhase `json:"shield,omitempty"`
	IsRevealed    bool        `json:"isRevealed"`
	IsFlagged     bool        `json:"isFlagged"`
	NeighborMines int         `json:"neighborMines"`
	RevealedBy    string      `json:"revealedBy,omitempty"`
	FlaggedBy     string      `json:"flaggedBy,omitempty"`
	CollectedBy   string      `json:"collectedBy,omitempty"`
	ShieldUsed    bool        `json:"shieldUsed,omitempty"`
}

func (c Cell) IsShield() bool { return c.Shield != ShieldNone }

func (c Cell) ShieldCollected() bool { return c.Shield == ShieldCollected }

// Collectable reports whether a click on this cell picks up its shield.
func (c Cell) Collectable() bool { return c.IsRevealed && c.Shield == ShieldRevealed }

// Reveal opens the cell for actor. A hidden shield becomes collectable.
// It returns false when the cell was already open.
func (c *Cell) Reveal(actor string) bool {
	if c.IsRevealed {
		return false
	}
	c.IsRevealed = true
	c.RevealedBy = actor
	if c.Shield == ShieldHidden {
		c.Shield = ShieldRevealed
	}
	return true
}

// Collect hands the shield to actor. Only revealed, uncollected shields move.
func (c *Cell) Collect(actor string) bool {
	if !c.Collectable() {
		return false
	}
	c.Shield = ShieldCollected
	c.CollectedBy = actor
	return true
}

// Coord addresses a cell.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Board is a fixed rows x cols grid. It is never resized after generation.
type Board struct {
	Rows  int      `json:"rows"`
	Cols  int      `json:"cols"`
	Cells [][]Cell `json:"cells"`
}

func NewBoard(rows, cols int) *Board {
	cells := make([][]Cell, rows)
	for r := range cells {
		cells[r] = make([]Cell, cols)
	}
	return &Board{Rows: rows, Cols: cols, Cells: cells}
}

func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.Rows && col >= 0 && col < b.Cols
}

// At returns a pointer into the board; callers must check bounds first.
func (b *Board) At(row, col int) *Cell {
	return &b.Cells[row][col]
}

// Neighbors returns the in-bounds 8-neighbourhood of (row, col).
func (b *Board) Neighbors(row, col int) []Coord {
	out := make([]Coord, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			nr, nc := row+dr, col+dc
			if b.InBounds(nr, nc) {
				out = append(out, Coord{Row: nr, Col: nc})
			}
		}
	}
	return out
}

func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := &Board{Rows: b.Rows, Cols: b.Cols, Cells: make([][]Cell, len(b.Cells))}
	for r, row := range b.Cells {
		out.Cells[r] = append([]Cell(nil), row...)
	}
	return out
}

// Count returns how many cells satisfy pred.
func (b *Board) Count(pred func(Cell) bool) int {
	n := 0
	for _, row := range b.Cells {
		for _, c := range row {
			if pred(c) {
				n++
			}
		}
	}
	return n
}
