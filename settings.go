package av1

import "github.com/deepteams/av1/internal/postfilter"

// Post-filter mask bits for Settings.PostFilterMask. A cleared bit makes
// that stage a structural no-op, not merely a run with trivial
// parameters.
const (
	MaskDeblock     = postfilter.MaskDeblock
	MaskCdef        = postfilter.MaskCdef
	MaskSuperRes    = postfilter.MaskSuperRes
	MaskRestoration = postfilter.MaskRestoration
	MaskFilmGrain   = postfilter.MaskFilmGrain
	MaskAllFilters  = postfilter.MaskAll
)

// Settings configures a Decoder at construction.
type Settings struct {
	// Threads is the total thread budget: the calling thread plus
	// Threads-1 pool workers. Values below 1 mean 1 (no pool).
	Threads int

	// FrameParallel decodes multiple frames concurrently, one worker per
	// frame, sharing the same pool used for in-frame parallelism. The
	// temporal-unit queue is sized to the worker count plus one.
	FrameParallel bool

	// BlockingDequeue makes DequeueFrame wait for the next unit to finish
	// instead of returning ErrNothingToDequeue.
	BlockingDequeue bool

	// OutputAllLayers emits every showable frame of a temporal unit, not
	// just the ones with show_frame set.
	OutputAllLayers bool

	// OperatingPoint selects the operating point (0-31) whose OBUs are
	// decoded; OBUs outside it are dropped during temporal-unit parsing.
	OperatingPoint int

	// PostFilterMask enables individual post-filter stages (bit 0
	// deblock, 1 CDEF, 2 superres, 3 restoration, 4 film grain).
	PostFilterMask uint8
}

// DefaultSettings returns the settings NewDecoder uses for a nil
// argument: single-threaded, all post filters enabled.
func DefaultSettings() Settings {
	return Settings{
		Threads:        1,
		PostFilterMask: MaskAllFilters,
	}
}
