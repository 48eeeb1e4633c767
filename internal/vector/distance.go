package vector

// SquaredL2 returns the sum of squared per-dimension differences between a and b.
// Both slices must have the same length; callers validate dimensions first.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// closer reports whether a ranks before b: smaller distance first, lower position on ties.
func closer(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Position < b.Position
}

// worstFirst is a max-heap of neighbors ordered by closer; the root is the worst kept hit.
type worstFirst []Neighbor

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) { *h = append(*h, x.(Neighbor)) }

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
