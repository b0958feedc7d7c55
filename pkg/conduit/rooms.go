package conduit

// roomSet tracks the rooms the caller intends to be joined to. Membership is
// client-declared intent, not server-confirmed truth: it survives reconnects
// and is replayed after every successful (re)connect. Insertion order is
// preserved so rejoin traffic is deterministic. Not goroutine-safe; the
// Client mutates it only under its own lock.
type roomSet struct {
	order   []string
	members map[string]struct{}
}

func newRoomSet() *roomSet {
	return &roomSet{
		members: make(map[string]struct{}),
	}
}

// add inserts a room id, reporting whether it was newly added.
func (r *roomSet) add(roomID string) bool {
	if _, ok := r.members[roomID]; ok {
		return false
	}
	r.members[roomID] = struct{}{}
	r.order = append(r.order, roomID)
	return true
}

// remove deletes a room id, reporting whether it was present.
func (r *roomSet) remove(roomID string) bool {
	if _, ok := r.members[roomID]; !ok {
		return false
	}
	delete(r.members, roomID)
	for i, id := range r.order {
		if id == roomID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *roomSet) contains(roomID string) bool {
	_, ok := r.members[roomID]
	return ok
}

// list returns the room ids in insertion order. The slice is a copy.
func (r *roomSet) list() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *roomSet) clear() {
	r.order = nil
	r.members = make(map[string]struct{})
}

func (r *roomSet) len() int {
	return len(r.order)
}
