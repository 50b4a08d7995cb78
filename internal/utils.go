package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes prints n in binary units followed by the exact byte count.
func FormatBytes(n uint64) string {
	if n < 1024 {
		return fmt.Sprintf("%d Bytes", n)
	}
	units := []string{"K", "M", "G", "T", "P", "E"}
	m := n
	i := 0
	for ; i < len(units)-1 && m >= 1<<20; i++ {
		m = m >> 10
	}
	return fmt.Sprintf("%.2f %siB (%d Bytes)", float64(m)/1024.0, units[i], n)
}

// ParseBytes accepts "64KiB", "1 MB", "4096" and the like.
func ParseBytes(s string) (uint64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n, nil
}

// ParseDuration extends time.ParseDuration with a leading day count ("2d",
// "1d12h") and bare seconds ("1.5").
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Microsecond * time.Duration(v*1e6), nil
	}
	if p := strings.Index(s, "d"); p >= 0 {
		days, err := strconv.ParseFloat(s[:p], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		var d time.Duration
		if rest := s[p+1:]; rest != "" {
			if d, err = time.ParseDuration(rest); err != nil {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
		}
		return time.Hour*time.Duration(days*24) + d, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
