package framecache

import (
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wader/gifcat/internal/logging"
	"github.com/wader/gifcat/internal/predraw"
	"github.com/wader/gifcat/internal/timing"
)

// DefaultPressureCooldown is how long growth is paused after memory pressure
var DefaultPressureCooldown = timing.Cooldown{Min: 5 * time.Second, Max: 10 * time.Second}

// Option configures a Cache
type Option func(*Cache)

// WithPolicy sets the growth ceiling policy, default Greedy
func WithPolicy(p Policy) Option {
	return func(c *Cache) { c.policy = p }
}

// WithWindowCap caps the window, 0 means no cap
func WithWindowCap(n int) Option {
	return func(c *Cache) { c.windowCap = n }
}

// WithOptimalSize overrides the window picked from the size classes, 0 keeps
// the default
func WithOptimalSize(n int) Option {
	return func(c *Cache) { c.optimalOverride = n }
}

// WithSizeClasses sets the thresholds used to pick the optimal window
func WithSizeClasses(sc SizeClasses) Option {
	return func(c *Cache) { c.sizeClasses = sc }
}

// WithPredraw applies fn to each frame in the background, nil disables
func WithPredraw(fn predraw.Func) Option {
	return func(c *Cache) { c.predraw = fn }
}

// WithWorkers sets number of background decode workers, default 1
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithClock is used for memory pressure cooldowns
func WithClock(clock timing.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithRand is used to draw cooldowns
func WithRand(r *rand.Rand) Option {
	return func(c *Cache) { c.rand = r }
}

func WithCooldown(cd timing.Cooldown) Option {
	return func(c *Cache) { c.cooldownRange = cd }
}

func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// WithMetrics registers cache metrics with reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Cache) { c.metrics = NewMetrics(reg) }
}

// WithSlowdown makes each background frame take factor times as long, used to
// see how playback behaves with slow decoding
func WithSlowdown(factor float64) Option {
	return func(c *Cache) { c.slowdown = factor }
}
