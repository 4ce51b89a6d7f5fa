package vm

import "lattice/internal/value"

// openUpvalueList is the VM's intrusive, singly-linked list of
// currently open upvalues, kept sorted by descending stack-slot address
// so that closing every upvalue above a given slot on scope exit is a
// single linear walk (§3, §9 "Upvalue graph"). This is the proper
// shared, open/closed upvalue scheme the spec calls for — the teacher's
// register-VM prototype instead closed every upvalue immediately on
// capture (see DESIGN.md), which would break property law 5 (two
// closures over the same local must observe each other's writes).
type openUpvalueList struct {
	head *value.Upvalue
	slot map[*value.Upvalue]int
}

func newOpenUpvalueList() *openUpvalueList {
	return &openUpvalueList{slot: make(map[*value.Upvalue]int)}
}

// capture returns the open upvalue for stackSlot, creating and
// inserting one (in descending-slot order) if none exists yet. Two
// closures capturing the same local in the same still-live frame
// receive the identical *Upvalue so writes through either are visible
// to both.
func (l *openUpvalueList) capture(stack []value.Value, stackSlot int) *value.Upvalue {
	var prev *value.Upvalue
	cur := l.head
	for cur != nil && l.slot[cur] > stackSlot {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && l.slot[cur] == stackSlot {
		return cur
	}
	up := &value.Upvalue{Location: &stack[stackSlot]}
	up.Next = cur
	l.slot[up] = stackSlot
	if prev == nil {
		l.head = up
	} else {
		prev.Next = up
	}
	return up
}

// closeFrom closes every open upvalue at or above fromSlot (copying
// its value out of the stack into the upvalue's own storage) and
// removes it from the open list. Called on scope exit / return
// (§4.3).
func (l *openUpvalueList) closeFrom(fromSlot int) {
	for l.head != nil && l.slot[l.head] >= fromSlot {
		up := l.head
		up.Close()
		l.head = up.Next
		delete(l.slot, up)
	}
}
