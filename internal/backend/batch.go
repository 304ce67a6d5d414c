package backend

import "fmt"

// Batch is a reusable arena of decode-request slots handed to the native
// decoder. Each slot carries a token id, its position in the context, the
// sequence lanes it belongs to, and whether logits are wanted for it.
//
// Capacity and lane bounds only ever grow. Growth reallocates the backing
// arrays and empties the batch: after any EnsureCapacity call that grew the
// buffer, callers must re-add every slot before the next Decode.
type Batch struct {
	tokens []Token
	pos    []int32
	seqIDs [][]int32
	logits []bool

	count    int
	capacity int
	maxLanes int
}

// NewBatch allocates a batch with room for capacity slots spanning up to
// lanes sequence lanes. Bounds below 1 are raised to 1.
func NewBatch(capacity, lanes int) *Batch {
	b := &Batch{}
	b.grow(max(capacity, 1), max(lanes, 1))
	return b
}

// EnsureCapacity guarantees room for required slots and lanes sequence
// lanes. When the batch already satisfies both bounds this is a no-op and
// populated slots survive. Otherwise the batch reallocates to
// max(required, capacity) slots and max(lanes, maxLanes) lanes and comes
// back empty.
func (b *Batch) EnsureCapacity(required, lanes int) {
	if required <= b.capacity && lanes <= b.maxLanes {
		return
	}
	b.grow(max(required, b.capacity), max(lanes, b.maxLanes))
}

func (b *Batch) grow(capacity, lanes int) {
	b.tokens = make([]Token, capacity)
	b.pos = make([]int32, capacity)
	b.logits = make([]bool, capacity)
	b.seqIDs = make([][]int32, capacity)
	for i := range b.seqIDs {
		b.seqIDs[i] = make([]int32, 0, lanes)
	}
	b.capacity = capacity
	b.maxLanes = lanes
	b.count = 0
}

// Clear empties the batch without reallocating.
func (b *Batch) Clear() {
	b.count = 0
}

// Add appends one decode-request slot. It fails with ErrCapacity when the
// batch is full or when the slot names more lanes than the batch was sized
// for; both indicate a caller that skipped EnsureCapacity.
func (b *Batch) Add(tok Token, pos int32, seqIDs []int32, wantsLogits bool) error {
	if b.count >= b.capacity {
		return fmt.Errorf("add slot %d with capacity %d: %w", b.count, b.capacity, ErrCapacity)
	}
	if len(seqIDs) > b.maxLanes {
		return fmt.Errorf("slot wants %d lanes with lane bound %d: %w", len(seqIDs), b.maxLanes, ErrCapacity)
	}
	i := b.count
	b.tokens[i] = tok
	b.pos[i] = pos
	b.seqIDs[i] = append(b.seqIDs[i][:0], seqIDs...)
	b.logits[i] = wantsLogits
	b.count++
	return nil
}

// Count returns the number of populated slots.
func (b *Batch) Count() int { return b.count }

// Capacity returns the current slot capacity.
func (b *Batch) Capacity() int { return b.capacity }

// MaxLanes returns the current per-slot lane bound.
func (b *Batch) MaxLanes() int { return b.maxLanes }

// Token returns the token id of slot i.
func (b *Batch) Token(i int) Token { return b.tokens[i] }

// Pos returns the context position of slot i.
func (b *Batch) Pos(i int) int32 { return b.pos[i] }

// SeqIDs returns the lane memberships of slot i. The slice is owned by the
// batch and valid until the next Add, Clear or EnsureCapacity.
func (b *Batch) SeqIDs(i int) []int32 { return b.seqIDs[i][:len(b.seqIDs[i]):len(b.seqIDs[i])] }

// WantsLogits reports whether slot i requested logits.
func (b *Batch) WantsLogits(i int) bool { return b.logits[i] }
