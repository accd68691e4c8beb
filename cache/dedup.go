package cache

import "time"

// DedupType names a class of deduplicated identifier, mapping to a
// namespace and a TTL preset.
type DedupType string

const (
	DedupNotification DedupType = "notification_dedup"
	DedupKillmail     DedupType = "killmail"
	DedupHealthCheck  DedupType = "health_check"
)

var dedupTTL = map[DedupType]time.Duration{
	DedupNotification: TTLNotifDedup,
	DedupKillmail:     TTLKillmail,
	DedupHealthCheck:  TTLHealthCheck,
}

// MarkResult is the outcome of CheckAndMark.
type MarkResult int

const (
	MarkNew MarkResult = iota
	MarkDuplicate
)

// CheckAndMark returns MarkNew iff the (typ, id) pair had not been seen
// within its TTL window, marking it seen as a side effect.
func (c *Cache) CheckAndMark(typ DedupType, id string) MarkResult {
	key := string(typ) + ":" + id
	if c.Exists(key) {
		return MarkDuplicate
	}
	ttl, ok := dedupTTL[typ]
	if !ok {
		ttl = DefaultTTL
	}
	_ = c.Put(key, true, ttl)
	return MarkNew
}
