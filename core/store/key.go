package store

// Getter reads the current value of a key. Derived keys receive a Getter when
// they are evaluated, so the caller decides which view of the data the
// computation sees (live store state, or a transaction's staged overlay).
type Getter func(key *Key) (any, error)

// ComputeFunc derives a value from other keys read through get.
type ComputeFunc func(get Getter) (any, error)

// KeyKind tags a Key as plain or derived.
type KeyKind int

const (
	KindPlain   KeyKind = iota // Value is set directly.
	KindDerived                // Value is computed on every read.
)

func (k KeyKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// Key names a slot in a Store. Keys are identified by name: two Key values
// with the same name address the same stored value.
type Key struct {
	name    string
	kind    KeyKind
	initial any
	compute ComputeFunc
}

// Plain creates a writable key. initial is returned by a store until the key
// is first set.
func Plain(name string, initial any) *Key {
	return &Key{name: name, kind: KindPlain, initial: initial}
}

// Derived creates a read-only key whose value is compute's result, evaluated
// against whatever Getter the reader supplies.
func Derived(name string, compute ComputeFunc) *Key {
	return &Key{name: name, kind: KindDerived, compute: compute}
}

func (k *Key) Name() string    { return k.name }
func (k *Key) Kind() KeyKind   { return k.kind }
func (k *Key) IsDerived() bool { return k.kind == KindDerived }

// Initial returns the plain key's initial value. Derived keys have none.
func (k *Key) Initial() any { return k.initial }

// Compute evaluates a derived key with get substituting for direct store reads.
func (k *Key) Compute(get Getter) (any, error) {
	if k.kind != KindDerived || k.compute == nil {
		return nil, ErrNotDerived
	}
	return k.compute(get)
}

func (k *Key) String() string {
	return k.kind.String() + ":" + k.name
}
