package combination

// indexCombinations lazily enumerates the k-element subsets of {0..n-1} in
// lexicographic order. It is an explicit iterative generator: no recursion,
// no captured closures, O(k) state, restartable from scratch at any time.
type indexCombinations struct {
	n, k    int
	idx     []int
	started bool
	done    bool
}

func newIndexCombinations(n, k int) *indexCombinations {
	it := &indexCombinations{n: n, k: k}
	if k < 1 || k > n {
		it.done = true
	}
	return it
}

// next returns the next index subset. The returned slice is reused between
// calls; callers must copy if they retain it.
func (it *indexCombinations) next() ([]int, bool) {
	if it.done {
		return nil, false
	}
	if !it.started {
		it.started = true
		it.idx = make([]int, it.k)
		for i := range it.idx {
			it.idx[i] = i
		}
		return it.idx, true
	}

	// Find the rightmost index that can still move right.
	i := it.k - 1
	for i >= 0 && it.idx[i] == it.n-it.k+i {
		i--
	}
	if i < 0 {
		it.done = true
		return nil, false
	}
	it.idx[i]++
	for j := i + 1; j < it.k; j++ {
		it.idx[j] = it.idx[j-1] + 1
	}
	return it.idx, true
}
