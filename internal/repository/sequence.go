package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// nextSequenceNumber computes the next number in a per-day PREFIX-NNN
// sequence. An empty last starts the day at 001; otherwise the numeric suffix
// of last is incremented. The suffix is zero-padded to three digits but keeps
// counting past 999.
func nextSequenceNumber(prefix, last string) (string, error) {
	seq := 0
	if last != "" {
		parsed, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed sequence number %q: %w", last, err)
		}
		seq = parsed
	}
	return fmt.Sprintf("%s%03d", prefix, seq+1), nil
}
