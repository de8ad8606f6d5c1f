// Package shard splits large JSON payloads into at most two byte-bounded
// fragments so they fit the backend's per-cell size limit, and reassembles
// them on read.
package shard

import (
	"context"
	"unicode/utf8"

	"github.com/leadfisco/fiscaldesk/internal/observability"
)

// DefaultLimit is the per-shard byte budget, chosen to stay under the
// backend's per-cell limit with margin.
const DefaultLimit = 90_000

// Split cuts payload into two shards whose first part is the largest
// rune-aligned prefix within limit bytes. Payloads within the limit come back
// as a single shard with an empty second part.
//
// Only two shards exist. When the remainder still exceeds the limit the write
// proceeds anyway: overflow is reported true, a warning is logged and a
// metric recorded, and downstream storage may truncate the second cell on
// pathological inputs.
func Split(ctx context.Context, payload string, limit int) (first, second string, overflow bool) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(payload) <= limit {
		return payload, "", false
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(payload[cut]) {
		cut--
	}
	first, second = payload[:cut], payload[cut:]

	if len(second) > limit {
		overflow = true
		observability.Log().Warn("snapshot payload exceeds two-shard capacity",
			observability.F("payload_bytes", len(payload)),
			observability.F("limit", limit),
			observability.F("shard2_bytes", len(second)),
		)
		observability.Metrics().RecordShardOverflow(ctx)
	}
	return first, second, overflow
}

// Join reassembles a payload from its shards.
func Join(first, second string) string {
	return first + second
}
