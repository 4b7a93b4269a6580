package telemetry

import "sync"

// Slot is the display unit of one core. A slot keeps its identity across
// updates so presentation state attached to it survives.
type Slot struct {
	Index int
	Usage float64
	Text  string
	Band  Band
}

func (s *Slot) set(usage float64) {
	s.Usage = usage
	s.Text = FormatPercent(usage)
	s.Band = BandFor(usage)
}

// SlotBoard holds one Slot per core. The first update creates the slots;
// later updates with the same core count rewrite them in place by position.
// A change in core count rebuilds the board.
type SlotBoard struct {
	mu    sync.Mutex
	slots []*Slot
}

// Apply writes cores into the board and reports whether slots were created.
func (b *SlotBoard) Apply(cores []float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	rebuilt := false
	if len(b.slots) != len(cores) {
		b.slots = make([]*Slot, len(cores))
		for i := range b.slots {
			b.slots[i] = &Slot{Index: i}
		}
		rebuilt = true
	}
	for i, usage := range cores {
		b.slots[i].set(usage)
	}
	return rebuilt
}

// Slots returns the live slot pointers.
func (b *SlotBoard) Slots() []*Slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Slot, len(b.slots))
	copy(out, b.slots)
	return out
}

// Values returns copies of the slots, safe to hand to another goroutine.
func (b *SlotBoard) Values() []Slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Slot, len(b.slots))
	for i, s := range b.slots {
		out[i] = *s
	}
	return out
}
