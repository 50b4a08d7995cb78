package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

// Process exit codes, one per failure kind.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitInvalidConfig   = 2
	ExitStreamRead      = 3
	ExitStoreWrite      = 4
	ExitNotFound        = 5
	ExitCorruptChunk    = 6
	ExitCorruptManifest = 7
)

var errUsage = errors.New("usage error")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// ExitCode maps an error returned by Main to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	switch dedup.KindOf(err) {
	case dedup.ErrInvalidConfig:
		return ExitInvalidConfig
	case dedup.ErrStreamRead:
		return ExitStreamRead
	case dedup.ErrStoreWrite:
		return ExitStoreWrite
	case dedup.ErrMissingChunk, dedup.ErrNotFound:
		return ExitNotFound
	case dedup.ErrCorruptChunk:
		return ExitCorruptChunk
	case dedup.ErrCorruptManifest:
		return ExitCorruptManifest
	}
	if errors.Is(err, errUsage) || errors.Is(err, internal.ErrNoStore) {
		return ExitInvalidConfig
	}
	return ExitFailure
}
