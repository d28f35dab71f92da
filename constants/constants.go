// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Framework-Wide Layout Tunables
//
// Purpose:
//   - Defines the cache-line geometry every hot structure aligns to.
//   - Defines the dispatcher batch envelope and timer queue depth.
//
// Notes:
//   - The cache-line size is part of the shared-memory Ether layout contract;
//     two processes attaching the same region must agree on it.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Cache Geometry ──────────────────────────────

const (
	// CacheLine is the alignment unit for the Ether header and every Ether
	// slot. Baked into the required region size.
	CacheLine = 64

	// CacheLineMask rounds sizes up to the next cache-line boundary:
	// aligned = (sz + CacheLineMask) &^ CacheLineMask
	CacheLineMask = CacheLine - 1
)

// ───────────────────────────── Dispatcher Envelope ──────────────────────────

const (
	// InitialBatchSize is where every dispatcher's adaptive drain starts,
	// and the floor it never shrinks below.
	InitialBatchSize = 64

	// Batch ceilings by trait. Readiness/batch-end dispatchers prioritize
	// latency, timer dispatchers moderate latency, plain drains throughput.
	MaxBatchReadiness = 1024
	MaxBatchTimer     = 2048
	MaxBatchDefault   = 65536

	// BacklogGrowShift: backlog > batchSize<<BacklogGrowShift doubles the batch.
	BacklogGrowShift = 3
)

// ───────────────────────────── Timer Queue ──────────────────────────────────

const (
	// TimerQueueDepth is the fixed capacity of each dispatcher's timer heap.
	TimerQueueDepth = 1 << 10
)

// ───────────────────────────── SwissTable Probe ─────────────────────────────

const (
	// GroupSize is the number of control bytes examined per probe step.
	// The single-writer table mirrors this many bytes past the array end.
	GroupSize = 16
)
