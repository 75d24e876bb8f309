package ir

// Arena owns every IR object allocated for a Module. Go's runtime does
// the actual allocation; the arena pins each object so cross-references
// can stay raw, non-owning pointers with module lifetime. Detaching an
// object from its container never frees it; Release drops everything at
// once when the Module is discarded.
type Arena struct {
	objects []any
}

func (a *Arena) adopt(obj any) {
	a.objects = append(a.objects, obj)
}

// NumObjects returns the number of objects owned by the arena.
func (a *Arena) NumObjects() int { return len(a.objects) }

// Release drops every owned object. The Module and everything reachable
// from it must not be used afterwards.
func (a *Arena) Release() {
	a.objects = nil
}
