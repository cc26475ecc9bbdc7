package blackbox

type historyGroup int

const (
	groupMain historyGroup = iota
	groupSlow
	groupGPS
	groupHome
	numGroups
)

func groupOf(ft FrameType) historyGroup {
	switch ft {
	case FrameSlow:
		return groupSlow
	case FrameGPS:
		return groupGPS
	case FrameGPSHome:
		return groupHome
	}
	return groupMain
}

// history is a two-slot rolling buffer of committed frame values. Both slots
// are allocated once for the schema width and overwritten in place.
type history struct {
	slots [2][]int64
	head  int
	count int
}

func newHistory(width int) *history {
	return &history{slots: [2][]int64{make([]int64, width), make([]int64, width)}}
}

func (h *history) previous() []int64 {
	if h == nil || h.count == 0 {
		return nil
	}
	return h.slots[h.head]
}

func (h *history) previous2() []int64 {
	if h == nil || h.count < 2 {
		return nil
	}
	return h.slots[1-h.head]
}

func (h *history) push(values []int64) {
	next := 1 - h.head
	copy(h.slots[next], values)
	h.head = next
	if h.count < 2 {
		h.count++
	}
}

// seed fills both slots, so the next frame sees values as previous and
// previous-previous.
func (h *history) seed(values []int64) {
	copy(h.slots[0], values)
	copy(h.slots[1], values)
	h.count = 2
}

func (h *history) reset() {
	h.head = 0
	h.count = 0
}
