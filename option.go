package hokkaido

const (
	// DefaultModCapacity is the number of (version, value) entries each
	// versioned node field holds before the node is copied. A node has one
	// incoming child pointer plus up to two incoming parent pointers, and
	// the log needs one more slot than its fan-in for the copy cost to
	// amortize to O(1) per update.
	DefaultModCapacity = 3

	// DefaultQueryCacheSize is the number of versions whose in-order key
	// sequence is memoized.
	DefaultQueryCacheSize = 128
)

// TreeOptions configures tree behavior.
type TreeOptions struct {
	modCapacity    int    // Entries per versioned field before copy on overflow.
	queryCacheSize uint32 // Versions memoized by QueryAt. 0 disables the cache.
	logger         Logger
}

// defaultTreeOptions returns the configuration used when no option is given.
func defaultTreeOptions() TreeOptions {
	return TreeOptions{
		modCapacity:    DefaultModCapacity,
		queryCacheSize: DefaultQueryCacheSize,
		logger:         DiscardLogger{},
	}
}

// TreeOption configures tree options using the functional options pattern.
type TreeOption func(*TreeOptions)

// WithModCapacity sets how many modifications each node field records
// before the node is copied. Capacity 1 degenerates into path copying:
// every update copies the whole root-to-node path. Larger capacities copy
// less often but scan longer logs on every read.
//
//goland:noinspection GoUnusedExportedFunction
func WithModCapacity(p int) TreeOption {
	return func(opts *TreeOptions) {
		opts.modCapacity = p
	}
}

// WithQueryCacheSize sets how many versions QueryAt memoizes. Published
// versions never change, so cached sequences never go stale.
//
//goland:noinspection GoUnusedExportedFunction
func WithQueryCacheSize(n uint32) TreeOption {
	return func(opts *TreeOptions) {
		opts.queryCacheSize = n
	}
}

// WithLogger sets the logger. A nil logger keeps the DiscardLogger.
//
//goland:noinspection GoUnusedExportedFunction
func WithLogger(l Logger) TreeOption {
	return func(opts *TreeOptions) {
		if l != nil {
			opts.logger = l
		}
	}
}
