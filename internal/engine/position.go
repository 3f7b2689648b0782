package engine

import "fmt"

// CommandPos locates exactly one record's bytes: generation, start offset,
// and length (spec.md §3).
type CommandPos struct {
	Gen    uint64
	Offset uint64
	Length uint64
}

// NewCommandPos builds a CommandPos from a generation and a [start, end)
// byte span, matching the original's `(gen, range).into()` conversion.
func NewCommandPos(gen, start, end uint64) CommandPos {
	return CommandPos{Gen: gen, Offset: start, Length: end - start}
}

func (p CommandPos) String() string {
	return fmt.Sprintf("(gen=%d, off=%d, len=%d)", p.Gen, p.Offset, p.Length)
}
