package codec

import "strings"

// decoderFunc decodes a payload already known to match a specific
// pattern. topic is the concrete topic the payload arrived on (so a
// decoder for a wildcarded pattern like "home/system/+/status" can pull
// the device_id out of the matched segment).
type decoderFunc func(topic string, payload []byte) (Event, error)

// registration pairs a topic pattern with its decoder and the order it
// was registered in, used to break specificity ties.
type registration struct {
	pattern string
	levels  []string
	decode  decoderFunc
	order   int
}

// matchTopic reports whether a concrete topic matches an MQTT-style
// pattern using "+" (single level) and "#" (trailing multi-level)
// wildcards.
func matchTopic(pattern, topic string) bool {
	pLevels := strings.Split(pattern, "/")
	tLevels := strings.Split(topic, "/")

	for i, p := range pLevels {
		if p == "#" {
			return true // matches this level and everything after
		}
		if i >= len(tLevels) {
			return false
		}
		if p == "+" {
			continue
		}
		if p != tLevels[i] {
			return false
		}
	}
	return len(pLevels) == len(tLevels)
}

// specificity returns a comparable key: fewer wildcards is more specific,
// then more levels is more specific, then earlier registration wins.
// Higher score sorts first.
type specificity struct {
	wildcards int
	levels    int
	order     int
}

func specificityOf(r registration) specificity {
	wildcards := 0
	for _, l := range r.levels {
		if l == "+" || l == "#" {
			wildcards++
		}
	}
	return specificity{wildcards: wildcards, levels: len(r.levels), order: r.order}
}

// less reports whether a is a better (more specific, or earlier
// registered on a tie) match than b.
func (a specificity) less(b specificity) bool {
	if a.wildcards != b.wildcards {
		return a.wildcards < b.wildcards
	}
	if a.levels != b.levels {
		return a.levels > b.levels
	}
	return a.order < b.order
}

// deviceIDFromWildcard extracts the value matched by the single "+"
// segment at wildcardIndex in pattern's level list.
func deviceIDFromWildcard(topic string, wildcardIndex int) string {
	levels := strings.Split(topic, "/")
	if wildcardIndex < 0 || wildcardIndex >= len(levels) {
		return ""
	}
	return levels[wildcardIndex]
}

// wildcardIndex returns the position of the first "+" in pattern's
// levels, or -1 if none.
func wildcardIndex(levels []string) int {
	for i, l := range levels {
		if l == "+" {
			return i
		}
	}
	return -1
}
