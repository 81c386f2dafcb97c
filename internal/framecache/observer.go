package framecache

// Observer receives diagnostics. Methods are called on the consumer
// goroutine and never after Close.
type Observer interface {
	CachedFramesChanged(cached []int)
	FrameRequested(index int)
	// MemoryUsage is width * height * 4 * number of cached frames
	MemoryUsage(bytes int64)
}

type nopObserver struct{}

func (nopObserver) CachedFramesChanged([]int) {}
func (nopObserver) FrameRequested(int)        {}
func (nopObserver) MemoryUsage(int64)         {}

// ObserverFuncs adapts functions to Observer, nil funcs are skipped
type ObserverFuncs struct {
	OnCachedFramesChanged func(cached []int)
	OnFrameRequested      func(index int)
	OnMemoryUsage         func(bytes int64)
}

func (o ObserverFuncs) CachedFramesChanged(cached []int) {
	if o.OnCachedFramesChanged != nil {
		o.OnCachedFramesChanged(cached)
	}
}

func (o ObserverFuncs) FrameRequested(index int) {
	if o.OnFrameRequested != nil {
		o.OnFrameRequested(index)
	}
}

func (o ObserverFuncs) MemoryUsage(bytes int64) {
	if o.OnMemoryUsage != nil {
		o.OnMemoryUsage(bytes)
	}
}
