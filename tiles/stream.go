package tiles

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TileStream is a pull-based sequence of items of type T, produced by coords
// and fed into map/filter stages. The parallel stages (MapItemParallel,
// FilterMapItemParallel) drain the whole stream into a slice before their
// workers start, and their output order relative to input is not
// guaranteed.
type TileStream[T any] struct {
	next func() (T, bool)
}

// FromSlice builds a stream that yields items in order.
func FromSlice[T any](items []T) TileStream[T] {
	i := 0
	return TileStream[T]{next: func() (T, bool) {
		if i >= len(items) {
			var zero T
			return zero, false
		}
		v := items[i]
		i++
		return v, true
	}}
}

// FromCoords builds a stream over every coordinate a TileBBox covers, in
// row-major order.
func FromCoords(bbox TileBBox) TileStream[TileCoord] {
	ch := make(chan TileCoord)
	go func() {
		defer close(ch)
		bbox.IterCoords(func(c TileCoord) bool {
			ch <- c
			return true
		})
	}()
	return TileStream[TileCoord]{next: func() (TileCoord, bool) {
		c, ok := <-ch
		return c, ok
	}}
}

// ForEach drains the stream sequentially.
func (s TileStream[T]) ForEach(fn func(T) error) error {
	for {
		v, ok := s.next()
		if !ok {
			return nil
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

// ToSlice drains the stream into a slice, in yield order.
func (s TileStream[T]) ToSlice() []T {
	var out []T
	for {
		v, ok := s.next()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// MapItemParallel applies fn to every item using up to runtime.NumCPU()
// worker goroutines, the same work-stealing cap the teacher applies to
// download_threads in extract.go. Results are emitted in completion order,
// not input order.
func MapItemParallel[T any, U any](ctx context.Context, s TileStream[T], fn func(context.Context, T) (U, error)) ([]U, error) {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var items []T
	for {
		v, ok := s.next()
		if !ok {
			break
		}
		items = append(items, v)
	}

	results := make([]U, 0, len(items))
	idx := 0
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				mu.Lock()
				if idx >= len(items) {
					mu.Unlock()
					return nil
				}
				item := items[idx]
				idx++
				mu.Unlock()

				out, err := fn(gctx, item)
				if err != nil {
					return err
				}

				mu.Lock()
				results = append(results, out)
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FilterMapItemParallel is MapItemParallel for stages that may drop items;
// fn returns ok=false to exclude the item from the result.
func FilterMapItemParallel[T any, U any](ctx context.Context, s TileStream[T], fn func(context.Context, T) (U, bool, error)) ([]U, error) {
	mapped, err := MapItemParallel(ctx, s, func(ctx context.Context, t T) (filteredResult[U], error) {
		u, ok, err := fn(ctx, t)
		return filteredResult[U]{value: u, ok: ok}, err
	})
	if err != nil {
		return nil, err
	}
	out := make([]U, 0, len(mapped))
	for _, r := range mapped {
		if r.ok {
			out = append(out, r.value)
		}
	}
	return out, nil
}

type filteredResult[U any] struct {
	value U
	ok    bool
}
