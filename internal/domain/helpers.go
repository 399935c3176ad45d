package domain

// CellRef addresses one cell of the meta-board.
type CellRef struct {
	Board int
	Cell  int
}

// LegalCells lists every cell a move may target given the active-board
// constraint. Decided sub-boards are full by construction, so they never
// contribute cells.
func LegalCells(m *MetaBoard, active ActiveBoard) []CellRef {
	cells := make([]CellRef, 0, 16)
	if active != ActiveAny && !m[active].Full() {
		for c, v := range m[active] {
			if v == MarkNone {
				cells = append(cells, CellRef{Board: int(active), Cell: c})
			}
		}
		return cells
	}
	for b := range m {
		for c, v := range m[b] {
			if v == MarkNone {
				cells = append(cells, CellRef{Board: b, Cell: c})
			}
		}
	}
	return cells
}

// FilledCells counts set cells across the whole meta-board.
func FilledCells(m *MetaBoard) int {
	n := 0
	for b := range m {
		for _, v := range m[b] {
			if v != MarkNone {
				n++
			}
		}
	}
	return n
}
