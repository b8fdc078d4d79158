package docstore

import "context"

// Collection binds a document name to its item type.
type Collection[T any] struct {
	store *Store
	name  string
}

func NewCollection[T any](s *Store, name string) Collection[T] {
	return Collection[T]{store: s, name: name}
}

func (c Collection[T]) Name() string { return c.name }

func (c Collection[T]) Read(ctx context.Context) (File[T], error) {
	return Read[File[T]](ctx, c.store, c.name)
}

func (c Collection[T]) Items(ctx context.Context) ([]T, error) {
	f, err := c.Read(ctx)
	if err != nil {
		return nil, err
	}
	return f.Items, nil
}

func (c Collection[T]) Mutate(ctx context.Context, fn func(*File[T]) error) (File[T], error) {
	return Mutate(ctx, c.store, c.name, fn)
}

// Replace swaps the whole item list. lastID is raised to at least the
// largest item id; it never moves backwards.
func (c Collection[T]) Replace(ctx context.Context, items []T, lastID int64) error {
	_, err := c.Mutate(ctx, func(f *File[T]) error {
		f.Items = append([]T{}, items...)
		f.Meta.LastID = max(f.Meta.LastID, lastID)
		return nil
	})
	return err
}
