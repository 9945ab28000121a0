package hokkaido

import (
	"flag"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talDoFlemis/hokkaido/internal/node"
)

// Use -slow flag to run longer tests
var slow = flag.Bool("slow", false, "run slow tests")

// Helper to create a tree and insert keys in order, one version each
func setup(t *testing.T, keys []int, options ...TreeOption) *Tree[int, string] {
	t.Helper()

	tree, err := New[int, string](options...)
	require.NoError(t, err, "Failed to create tree")

	for i, k := range keys {
		v, err := tree.Insert(k, valueOf(k))
		require.NoError(t, err)
		require.Equal(t, Version(i+1), v)
	}
	return tree
}

func valueOf(k int) string {
	return "v" + string(rune('a'+k%26))
}

// checkRedBlack walks version v and fails on a red-red edge, a red root, a
// broken parent link or an uneven black height. It returns the height.
func checkRedBlack(t *testing.T, tree *Tree[int, string], v Version) int {
	t.Helper()

	tree.mu.RLock()
	defer tree.mu.RUnlock()

	root, err := tree.rootAt(v)
	require.NoError(t, err)

	s := tree.store
	if root == node.Nil {
		return 0
	}
	require.Equal(t, Black, s.Color(root, v), "root must be black at version %d", v)
	require.Equal(t, node.Nil, s.Parent(root, v), "root has a parent at version %d", v)

	var walk func(h node.Handle, lo, hi *int) (blackHeight, height int)
	walk = func(h node.Handle, lo, hi *int) (int, int) {
		if h == node.Nil {
			return 1, 0
		}
		k := s.Key(h)
		if lo != nil {
			require.Greater(t, k, *lo, "order broken at version %d", v)
		}
		if hi != nil {
			require.Less(t, k, *hi, "order broken at version %d", v)
		}

		left, right := s.Left(h, v), s.Right(h, v)
		for _, child := range []node.Handle{left, right} {
			if child == node.Nil {
				continue
			}
			require.True(t, s.Same(h, s.Parent(child, v), v),
				"parent link of %d broken at version %d", s.Key(child), v)
			if s.Color(h, v) == Red {
				require.Equal(t, Black, s.Color(child, v),
					"red %d has red child %d at version %d", k, s.Key(child), v)
			}
		}

		lb, lh := walk(left, lo, &k)
		rb, rh := walk(right, &k, hi)
		require.Equal(t, lb, rb, "black height differs under %d at version %d", k, v)
		if s.Color(h, v) == Black {
			lb++
		}
		return lb, max(lh, rh) + 1
	}

	_, height := walk(root, nil, nil)
	return height
}

func TestInsertScenario(t *testing.T) {
	t.Parallel()

	tree := setup(t, []int{1, 2, 3, 4, 5})
	assert.Equal(t, Version(5), tree.LatestVersion())

	keys, err := tree.QueryAt(3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, keys)

	keys, err = tree.QueryAt(5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, keys)

	keys, err = tree.QueryAt(0)
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)

	_, err = tree.QueryAt(6)
	assert.ErrorIs(t, err, ErrUnknownVersion)

	v, err := tree.Insert(3, "again")
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, Version(5), v)
	assert.Equal(t, Version(5), tree.LatestVersion())

	// The rejected insert left no trace
	keys, err = tree.QueryAt(5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, keys)
}

func TestNewRejectsInvalidModCapacity(t *testing.T) {
	t.Parallel()

	_, err := New[int, string](WithModCapacity(0))
	assert.ErrorIs(t, err, ErrInvalidModCapacity)

	_, err = New[int, string](WithModCapacity(-3))
	assert.ErrorIs(t, err, ErrInvalidModCapacity)
}

func TestVersionsAreMonotonic(t *testing.T) {
	t.Parallel()

	tree, err := New[int, string]()
	require.NoError(t, err)

	r := rand.New(rand.NewSource(1))
	want := Version(0)
	for _, k := range r.Perm(500) {
		v, err := tree.Insert(k, "")
		require.NoError(t, err)
		want++
		require.Equal(t, want, v)

		// Interleaved duplicates never consume a version
		if k%7 == 0 {
			v, err = tree.Insert(k, "")
			require.ErrorIs(t, err, ErrDuplicateKey)
			require.Equal(t, want, v)
		}
	}
	assert.Equal(t, want, tree.LatestVersion())
}

func TestHistoricalVersionsAreImmutable(t *testing.T) {
	t.Parallel()

	for _, p := range []int{1, 2, 3, 5} {
		tree, err := New[int, string](WithModCapacity(p), WithQueryCacheSize(0))
		require.NoError(t, err)

		r := rand.New(rand.NewSource(int64(p)))
		keys := r.Perm(300)

		snapshots := make([][]int, 0, len(keys)+1)
		sums := make([]uint64, 0, len(keys)+1)
		record := func(v Version) {
			got, err := tree.QueryAt(v)
			require.NoError(t, err)
			sum, err := tree.Checksum(v)
			require.NoError(t, err)
			snapshots = append(snapshots, got)
			sums = append(sums, sum)
		}

		record(0)
		for _, k := range keys {
			v, err := tree.Insert(k, valueOf(k))
			require.NoError(t, err)
			record(v)
		}

		for v := range snapshots {
			got, err := tree.QueryAt(Version(v))
			require.NoError(t, err)
			require.Equal(t, snapshots[v], got, "p=%d version %d changed", p, v)

			sum, err := tree.Checksum(Version(v))
			require.NoError(t, err)
			require.Equal(t, sums[v], sum, "p=%d version %d reshaped", p, v)
		}
	}
}

func TestQueryAtIsSortedAndComplete(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(42))
	keys := r.Perm(400)
	tree := setup(t, keys)

	for v := 0; v <= len(keys); v++ {
		got, err := tree.QueryAt(Version(v))
		require.NoError(t, err)

		want := append(make([]int, 0, v), keys[:v]...)
		sort.Ints(want)
		require.Equal(t, want, got, "version %d", v)

		n, err := tree.Len(Version(v))
		require.NoError(t, err)
		require.Equal(t, v, n)
	}
}

func TestRedBlackInvariantsAtEveryVersion(t *testing.T) {
	t.Parallel()

	inputs := map[string][]int{
		"ascending":  seq(0, 256, 1),
		"descending": seq(255, -1, -1),
		"random":     rand.New(rand.NewSource(7)).Perm(256),
		"zigzag":     zigzag(256),
	}

	for name, keys := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for _, p := range []int{1, 3} {
				tree := setup(t, keys, WithModCapacity(p))
				for v := 0; v <= len(keys); v++ {
					height := checkRedBlack(t, tree, Version(v))
					// h <= 2 log2(n+1)
					if v > 0 {
						require.LessOrEqual(t, height, 2*bitLen(v+1), "version %d too tall", v)
					}
				}
			}
		})
	}
}

func TestNodesReportsColorsAndDepth(t *testing.T) {
	t.Parallel()

	tree := setup(t, []int{1, 2, 3})

	infos, err := tree.Nodes(3)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	// 1,2,3 ascending rotates into 2 over 1 and 3
	assert.Equal(t, NodeInfo[int, string]{Key: 1, Value: valueOf(1), Color: Red, Depth: 1}, infos[0])
	assert.Equal(t, NodeInfo[int, string]{Key: 2, Value: valueOf(2), Color: Black, Depth: 0}, infos[1])
	assert.Equal(t, NodeInfo[int, string]{Key: 3, Value: valueOf(3), Color: Red, Depth: 1}, infos[2])

	// Version 2 still has 1 at the root
	infos, err = tree.Nodes(2)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 0, infos[0].Depth)
	assert.Equal(t, Black, infos[0].Color)
	assert.Equal(t, 1, infos[1].Depth)
	assert.Equal(t, Red, infos[1].Color)
}

func TestSearchGetAndNeighbors(t *testing.T) {
	t.Parallel()

	tree := setup(t, []int{50, 20, 80, 10, 30, 70, 90})

	tests := []struct {
		name    string
		version Version
		key     int
		found   bool
		succ    int
		hasSucc bool
		pred    int
		hasPred bool
	}{
		{"present at latest", 7, 30, true, 50, true, 20, true},
		{"absent between", 7, 55, false, 70, true, 50, true},
		{"greatest", 7, 90, true, 0, false, 80, true},
		{"below all", 7, 1, false, 10, true, 0, false},
		{"not yet inserted", 3, 30, false, 50, true, 20, true},
		{"early version", 1, 20, false, 50, true, 0, false},
		{"empty version", 0, 50, false, 0, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			found, err := tree.SearchAt(tt.version, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)

			value, err := tree.Get(tt.version, tt.key)
			if tt.found {
				require.NoError(t, err)
				assert.Equal(t, valueOf(tt.key), value)
			} else {
				assert.ErrorIs(t, err, ErrKeyNotFound)
			}

			succ, ok, err := tree.Successor(tt.version, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.hasSucc, ok)
			assert.Equal(t, tt.succ, succ)

			pred, ok, err := tree.Predecessor(tt.version, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.hasPred, ok)
			assert.Equal(t, tt.pred, pred)
		})
	}
}

func TestQueriesRejectUnknownVersion(t *testing.T) {
	t.Parallel()

	tree := setup(t, []int{1, 2})

	_, err := tree.SearchAt(3, 1)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	_, err = tree.Get(3, 1)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	_, _, err = tree.Successor(3, 1)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	_, _, err = tree.Predecessor(3, 1)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	_, err = tree.Len(3)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	_, err = tree.Nodes(3)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	_, err = tree.Checksum(3)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	_, err = tree.Cursor(3)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	err = tree.Ascend(3, func(int, string) bool { return true })
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestAscendStopsEarly(t *testing.T) {
	t.Parallel()

	tree := setup(t, []int{5, 3, 8, 1, 4})

	var got []int
	err := tree.Ascend(5, func(k int, v string) bool {
		assert.Equal(t, valueOf(k), v)
		got = append(got, k)
		return k < 4
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4}, got)
}

func TestQueryAtCache(t *testing.T) {
	t.Parallel()

	tree := setup(t, []int{3, 1, 2}, WithQueryCacheSize(2))

	first, err := tree.QueryAt(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tree.Stats().CacheHits)

	// Mutating the result must not reach the cache
	first[0] = 99

	second, err := tree.QueryAt(2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, second)
	assert.Equal(t, uint64(1), tree.Stats().CacheHits)

	// Later inserts do not invalidate
	_, err = tree.Insert(0, "")
	require.NoError(t, err)
	third, err := tree.QueryAt(2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, third)
	assert.Equal(t, uint64(2), tree.Stats().CacheHits)
}

func TestChecksumDistinguishesShapes(t *testing.T) {
	t.Parallel()

	a := setup(t, []int{1, 2, 3})
	b := setup(t, []int{2, 1, 3})
	c := setup(t, []int{1, 2, 4})

	sa, err := a.Checksum(3)
	require.NoError(t, err)
	sb, err := b.Checksum(3)
	require.NoError(t, err)
	sc, err := c.Checksum(3)
	require.NoError(t, err)

	// Same keys in the same shape
	assert.Equal(t, sa, sb)
	assert.NotEqual(t, sa, sc)

	// Different shape: 2 is the root at version 2 of b only
	sa2, err := a.Checksum(2)
	require.NoError(t, err)
	sb2, err := b.Checksum(2)
	require.NoError(t, err)
	assert.NotEqual(t, sa2, sb2)
}

func TestAmortizedSpace(t *testing.T) {
	t.Parallel()

	n := 4096
	if *slow {
		n = 1 << 17
	}

	keys := rand.New(rand.NewSource(99)).Perm(n)
	persistent := setup(t, keys)
	pathCopy := setup(t, keys, WithModCapacity(1))

	stats := persistent.Stats()
	t.Logf("n=%d nodes=%d copies=%d writes=%d path-copy nodes=%d",
		n, stats.Nodes, stats.Copies, stats.FieldWrites, pathCopy.Stats().Nodes)

	assert.Equal(t, Version(n), stats.Versions)
	assert.Equal(t, uint64(stats.Nodes-n), stats.Copies)
	assert.LessOrEqual(t, stats.Nodes, 4*n, "node count should stay linear")
	assert.Less(t, stats.Nodes, pathCopy.Stats().Nodes)
}

// longestChain returns the longest supersededBy chain in the arena.
func longestChain(tree *Tree[int, string]) int {
	tree.mu.RLock()
	defer tree.mu.RUnlock()

	s := tree.store
	longest := 0
	for h := node.Handle(1); int(h) <= s.Len(); h++ {
		n := 0
		for next := s.Node(h).Superseded(); next != node.Nil; next = s.Node(next).Superseded() {
			n++
		}
		longest = max(longest, n)
	}
	return longest
}

func TestSupersedeChainsStayShort(t *testing.T) {
	t.Parallel()

	n := 4096
	inputs := map[string][]int{
		"ascending": seq(0, n, 1),
		"random":    rand.New(rand.NewSource(11)).Perm(n),
	}

	for name, keys := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Stale handles resolve by walking these chains, so their length
			// bounds the extra cost of every pointer read.
			tree := setup(t, keys)
			longest := longestChain(tree)
			t.Logf("longest chain %d over %d nodes", longest, tree.Stats().Nodes)
			assert.LessOrEqual(t, longest, 16)

			latest := tree.LatestVersion()
			got, err := tree.QueryAt(latest)
			require.NoError(t, err)
			assert.Len(t, got, n)
		})
	}
}

func TestConcurrentReadersDuringInserts(t *testing.T) {
	t.Parallel()

	tree, err := New[int, string](WithQueryCacheSize(16))
	require.NoError(t, err)

	const total = 2000
	keys := rand.New(rand.NewSource(3)).Perm(total)

	var wg sync.WaitGroup
	done := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-done:
					return
				default:
				}

				latest := tree.LatestVersion()
				v := Version(rng.Int63n(int64(latest) + 1))
				got, err := tree.QueryAt(v)
				if !assert.NoError(t, err) {
					return
				}
				if !assert.Len(t, got, int(v)) {
					return
				}
				if !assert.True(t, sort.IntsAreSorted(got)) {
					return
				}
			}
		}(int64(r))
	}

	for _, k := range keys {
		_, err := tree.Insert(k, "")
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	checkRedBlack(t, tree, total)
}

func TestSlowRandomInvariants(t *testing.T) {
	if !*slow {
		t.Skip("Skipping slow test; use -slow to enable")
	}
	t.Parallel()

	r := rand.New(rand.NewSource(2024))
	for _, p := range []int{1, 2, 3, 4, 8} {
		keys := r.Perm(5000)
		tree := setup(t, keys, WithModCapacity(p))
		for v := 0; v <= len(keys); v += 97 {
			checkRedBlack(t, tree, Version(v))
		}
	}
}

func seq(from, to, step int) []int {
	var out []int
	for i := from; i != to; i += step {
		out = append(out, i)
	}
	return out
}

// zigzag alternates low and high keys, forcing both rotation directions.
func zigzag(n int) []int {
	out := make([]int, 0, n)
	for lo, hi := 0, n-1; lo <= hi; lo, hi = lo+1, hi-1 {
		out = append(out, lo)
		if lo != hi {
			out = append(out, hi)
		}
	}
	return out
}

func bitLen(n int) int {
	l := 0
	for ; n > 0; n >>= 1 {
		l++
	}
	return l
}
