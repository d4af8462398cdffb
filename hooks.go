package scalecache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking and must not call back
// into the cache. Hit and Miss run on every Get.
type Hooks interface {
	// A Get found an equal stored entry.
	Hit(e Entry)
	// A Get found nothing and is about to generate q.
	Miss(q Entry)
	// q was generated and inserted.
	Generated(e Entry, took time.Duration)
	// Generate returned err; nothing was inserted.
	GenerateFailed(q Entry, err error)
	// Two concurrent misses generated the same key; e replaced the first.
	DuplicateInsert(e Entry)
	// e was generated across SetOriginal/Clear and was not inserted.
	StaleDiscard(e Entry)
	// The cache dropped entries totalling bytes (SetOriginal or Clear).
	Reset(entries int, bytes int64)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(Entry)                      {}
func (NopHooks) Miss(Entry)                     {}
func (NopHooks) Generated(Entry, time.Duration) {}
func (NopHooks) GenerateFailed(Entry, error)    {}
func (NopHooks) DuplicateInsert(Entry)          {}
func (NopHooks) StaleDiscard(Entry)             {}
func (NopHooks) Reset(int, int64)               {}
