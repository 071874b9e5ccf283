package service

import (
	"strconv"
	"strings"

	appErrors "github.com/opencourse/media-api/pkg/errors"
)

// ParseRange interprets a "bytes=<start>-<end>" request header against a
// resource of the given size.
//
// The end bound is handled leniently: when omitted it defaults to
// start+chunk-1, and when present but unparsable it defaults to size-1.
// Some deployed players send malformed end bounds and rely on this, so the
// leniency is deliberate. The effective end is always clamped to size-1.
//
// A start that is not a number, a negative start, a start at or beyond the
// file size, and an effective end before the start all yield
// ErrRangeNotSatisfiable.
func ParseRange(header string, size, chunk int64) (start, end int64, err error) {
	spec := strings.TrimPrefix(strings.TrimSpace(header), "bytes=")
	parts := strings.SplitN(spec, "-", 2)

	start, parseErr := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if parseErr != nil || start < 0 || start >= size {
		return 0, 0, appErrors.ErrRangeNotSatisfiable
	}

	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		end, parseErr = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if parseErr != nil {
			end = size - 1
		}
	} else {
		end = start + chunk - 1
	}
	if end > size-1 {
		end = size - 1
	}
	if end < start {
		return 0, 0, appErrors.ErrRangeNotSatisfiable
	}

	return start, end, nil
}
