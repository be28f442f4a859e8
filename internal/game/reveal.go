package game

import "github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"

// Reveal flood-fills from (row, col) on b, which must be a board the caller
// owns. It returns the cells it opened in visiting order.
//
// The fill is 8-connected and iterative. It opens every reachable cell that
// is neither revealed nor flagged, and only continues outward from cells
// that are empty: no mine, no shield, zero neighbouring mines. Shields are
// opened but stop the fill.
func Reveal(b *domain.Board, row, col int, actor string) []domain.Coord {
	if b == nil || !b.InBounds(row, col) {
		return nil
	}
	if seed := b.At(row, col); seed.IsRevealed || seed.IsFlagged {
		return nil
	}

	visited := make([]bool, b.Rows*b.Cols)
	visited[row*b.Cols+col] = true
	stack := []domain.Coord{{Row: row, Col: col}}
	var opened []domain.Coord

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cell := b.At(cur.Row, cur.Col)
		if cell.IsFlagged || !cell.Reveal(actor) {
			continue
		}
		opened = append(opened, cur)

		if cell.IsMine || cell.IsShield() || cell.NeighborMines != 0 {
			continue
		}
		for _, nb := range b.Neighbors(cur.Row, cur.Col) {
			i := nb.Row*b.Cols + nb.Col
			if visited[i] {
				continue
			}
			visited[i] = true
			stack = append(stack, nb)
		}
	}
	return opened
}
