package telemetry

import (
	"fmt"
	"math"
	"net/url"
	"unicode/utf8"

	"github.com/thisdougb/telemetry/internal/errorrec"
	"github.com/thisdougb/telemetry/internal/metrics"
)

const (
	maxStringLength = 100
	maxURLLength    = 8192
)

type problem struct {
	kind errorrec.Kind
	msg  string
}

// rule is the per-type behaviour of a Metric: how input is validated and
// converted, how it merges with what is stored, and how it is read back.
type rule[P, T any] struct {
	kind    metrics.Kind
	convert func(in P) (v metrics.Value, store bool, problems []problem)
	merge   func(old metrics.Value, ok bool, next metrics.Value) (metrics.Value, *problem)
	decode  func(v metrics.Value) T
}

func overwrite(_ metrics.Value, _ bool, next metrics.Value) (metrics.Value, *problem) {
	return next, nil
}

// accumulate adds to the stored count, saturating at MaxInt32.
func accumulate(old metrics.Value, ok bool, next metrics.Value) (metrics.Value, *problem) {
	var current int64
	if ok && old.Int > 0 {
		current = min(old.Int, math.MaxInt32)
	}
	if next.Int > math.MaxInt32-current {
		return metrics.Counter(math.MaxInt32), &problem{errorrec.InvalidOverflow, "counter saturated"}
	}
	return metrics.Counter(current + next.Int), nil
}

var booleanRule = &rule[bool, bool]{
	kind: metrics.KindBoolean,
	convert: func(b bool) (metrics.Value, bool, []problem) {
		return metrics.Boolean(b), true, nil
	},
	merge:  overwrite,
	decode: func(v metrics.Value) bool { return v.Bool },
}

var stringRule = &rule[string, string]{
	kind: metrics.KindString,
	convert: func(s string) (metrics.Value, bool, []problem) {
		if len(s) <= maxStringLength {
			return metrics.String(s), true, nil
		}
		msg := fmt.Sprintf("value length %d exceeds maximum of %d", len(s), maxStringLength)
		return metrics.String(truncate(s, maxStringLength)), true, []problem{{errorrec.InvalidOverflow, msg}}
	},
	merge:  overwrite,
	decode: func(v metrics.Value) string { return v.Str },
}

var urlRule = &rule[string, string]{
	kind: metrics.KindURL,
	convert: func(s string) (metrics.Value, bool, []problem) {
		if len(s) > maxURLLength {
			msg := fmt.Sprintf("url length %d exceeds maximum of %d", len(s), maxURLLength)
			return metrics.Value{}, false, []problem{{errorrec.InvalidOverflow, msg}}
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" {
			return metrics.Value{}, false, []problem{{errorrec.InvalidValue, "url is not absolute"}}
		}
		return metrics.URL(s), true, nil
	},
	merge:  overwrite,
	decode: func(v metrics.Value) string { return v.Str },
}

var quantityRule = &rule[int64, int64]{
	kind: metrics.KindQuantity,
	convert: func(n int64) (metrics.Value, bool, []problem) {
		if n < 0 {
			return metrics.Value{}, false, []problem{{errorrec.InvalidValue, fmt.Sprintf("negative value %d", n)}}
		}
		return metrics.Quantity(n), true, nil
	},
	merge:  overwrite,
	decode: func(v metrics.Value) int64 { return v.Int },
}

var counterRule = &rule[int, int32]{
	kind: metrics.KindCounter,
	convert: func(amount int) (metrics.Value, bool, []problem) {
		if amount <= 0 {
			return metrics.Value{}, false, []problem{{errorrec.InvalidValue, fmt.Sprintf("added non-positive amount %d", amount)}}
		}
		return metrics.Counter(int64(amount)), true, nil
	},
	merge:  accumulate,
	decode: func(v metrics.Value) int32 { return int32(v.Int) },
}

// jsonText is serialized JSON waiting to be validated.
type jsonText string

var objectRule = &rule[jsonText, string]{
	kind: metrics.KindObject,
	convert: func(doc jsonText) (metrics.Value, bool, []problem) {
		canonical, err := metrics.Canonicalize([]byte(doc))
		if err != nil {
			return metrics.Value{}, false, []problem{{errorrec.InvalidValue, "value is not valid json: " + err.Error()}}
		}
		return metrics.Object(canonical), true, nil
	},
	merge:  overwrite,
	decode: func(v metrics.Value) string { return v.Str },
}

// truncate cuts s to at most n bytes without splitting a character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
