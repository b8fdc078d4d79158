package docstore

// Meta is the envelope header shared by every collection document.
type Meta struct {
	LastID int64 `json:"lastId"`
}

// File is the persisted shape of a collection: {"meta":{"lastId":N},"items":[...]}.
type File[T any] struct {
	Meta  Meta `json:"meta"`
	Items []T  `json:"items"`
}

// Identified items let the store keep meta.lastId >= max(id).
type Identified interface {
	EntityID() int64
}

// NextID reserves the next id. Call it inside a Mutate so reservation and
// insertion land in the same write.
func (f *File[T]) NextID() int64 {
	f.Meta.LastID++
	return f.Meta.LastID
}

func (f *File[T]) normalize() {
	if f.Items == nil {
		f.Items = []T{}
	}
	for _, it := range f.Items {
		if ided, ok := any(it).(Identified); ok && ided.EntityID() > f.Meta.LastID {
			f.Meta.LastID = ided.EntityID()
		}
	}
}

type normalizer interface {
	normalize()
}

// Counter is a bare {"lastId":N} document, used for ids shared across shards.
type Counter struct {
	LastID int64 `json:"lastId"`
}
