package gifsource

import "strconv"

// LoopCount is number of full playback cycles, zero (or less) means infinite
type LoopCount int

const LoopInfinite LoopCount = 0

func (lc LoopCount) IsInfinite() bool { return lc <= 0 }

func (lc LoopCount) String() string {
	if lc.IsInfinite() {
		return "infinite"
	}
	return strconv.Itoa(int(lc))
}
