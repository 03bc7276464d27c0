package parallel

import (
	"cmp"
	"container/heap"
	"context"
	"slices"
)

// chunks splits data into consecutive slices of at most size elements. A
// zero size spreads data evenly over workers.
func chunks[T any](data []T, size, workers int) ([][]T, error) {
	if size < 0 {
		return nil, invalidArgument("chunk_size must be positive, got %d", size)
	}
	if size == 0 {
		size = (len(data) + workers - 1) / workers
		if size == 0 {
			size = 1
		}
	}
	var out [][]T
	for start := 0; start < len(data); start += size {
		out = append(out, data[start:min(start+size, len(data))])
	}
	return out, nil
}

// Sort returns a sorted copy of data. Chunks of chunkSize elements are sorted
// in parallel and then merged.
func Sort[T cmp.Ordered](ctx context.Context, data []T, chunkSize, workers int) ([]T, error) {
	return SortFunc(ctx, data, chunkSize, workers, cmp.Compare[T])
}

// SortFunc is Sort ordered by compare. The sort is stable.
func SortFunc[T any](ctx context.Context, data []T, chunkSize, workers int, compare func(a, b T) int) ([]T, error) {
	if compare == nil {
		return nil, invalidArgument("compare is required")
	}
	return withPool("sort", workers, func(p *Pool) ([]T, error) {
		parts, err := chunks(data, chunkSize, p.Workers())
		if err != nil {
			return nil, err
		}
		sorted, err := Run(ctx, p, func(_ context.Context, part []T) ([]T, error) {
			c := slices.Clone(part)
			slices.SortStableFunc(c, compare)
			return c, nil
		}, parts)
		if err != nil {
			return nil, err
		}
		return merge(sorted, compare), nil
	})
}

type cursor struct {
	chunk int
	pos   int
}

type mergeHeap[T any] struct {
	chunks  [][]T
	cursors []cursor
	compare func(a, b T) int
}

func (h *mergeHeap[T]) Len() int { return len(h.cursors) }

func (h *mergeHeap[T]) Less(i, j int) bool {
	a, b := h.cursors[i], h.cursors[j]
	if c := h.compare(h.chunks[a.chunk][a.pos], h.chunks[b.chunk][b.pos]); c != 0 {
		return c < 0
	}
	return a.chunk < b.chunk
}

func (h *mergeHeap[T]) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *mergeHeap[T]) Push(x any) { h.cursors = append(h.cursors, x.(cursor)) }

func (h *mergeHeap[T]) Pop() any {
	last := h.cursors[len(h.cursors)-1]
	h.cursors = h.cursors[:len(h.cursors)-1]
	return last
}

// merge performs a k-way merge of sorted chunks. Ties keep chunk order.
func merge[T any](sorted [][]T, compare func(a, b T) int) []T {
	n := 0
	h := &mergeHeap[T]{chunks: sorted, compare: compare}
	for i, c := range sorted {
		n += len(c)
		if len(c) > 0 {
			h.cursors = append(h.cursors, cursor{chunk: i})
		}
	}
	heap.Init(h)

	out := make([]T, 0, n)
	for h.Len() > 0 {
		top := h.cursors[0]
		out = append(out, sorted[top.chunk][top.pos])
		if top.pos+1 < len(sorted[top.chunk]) {
			h.cursors[0].pos++
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
	}
	return out
}

// Unique returns the distinct elements of data in order of first
// occurrence. Chunks are deduplicated in parallel and then combined.
func Unique[T comparable](ctx context.Context, data []T, chunkSize, workers int) ([]T, error) {
	return withPool("unique", workers, func(p *Pool) ([]T, error) {
		parts, err := chunks(data, chunkSize, p.Workers())
		if err != nil {
			return nil, err
		}
		deduped, err := Run(ctx, p, func(_ context.Context, part []T) ([]T, error) {
			return distinct(part, nil), nil
		}, parts)
		if err != nil {
			return nil, err
		}
		seen := make(map[T]struct{})
		out := []T{}
		for _, part := range deduped {
			out = append(out, distinct(part, seen)...)
		}
		return out, nil
	})
}

func distinct[T comparable](data []T, seen map[T]struct{}) []T {
	if seen == nil {
		seen = make(map[T]struct{}, len(data))
	}
	var out []T
	for _, v := range data {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
