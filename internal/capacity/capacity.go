// Package capacity plans the output bitrate so a whole audiobook fits on the
// target drive with headroom for filesystem overhead.
package capacity

import (
	"errors"
	"fmt"
)

const (
	// reserveFraction is the share of the drive held back for FAT metadata
	// and the integrity files.
	reserveFraction = 0.05

	// MinBitRate is the floor below which speech becomes unintelligible.
	MinBitRate = 32000
)

// ErrDoesNotFit indicates the audio cannot fit even at the minimum bitrate.
var ErrDoesNotFit = errors.New("audio does not fit on target drive at minimum bitrate")

// Plan is the outcome of a bitrate selection.
type Plan struct {
	BitRate        int
	UsableBytes    int64
	ProjectedBytes int64
	Reduced        bool
}

// SelectBitRate picks the encode bitrate given the projected total size at the
// configured bitrate and the drive capacity. The configured bitrate is kept
// when the projection fits the usable (95%) budget; otherwise it is scaled
// down by usable/projected, never below MinBitRate and never above the
// configured value. This is a single-shot linear estimate, not an iterative
// re-measurement.
func SelectBitRate(configured int, projectedSizeBytes, driveSizeBytes int64) (Plan, error) {
	if configured <= 0 {
		return Plan{}, fmt.Errorf("invalid configured bitrate %d", configured)
	}
	if projectedSizeBytes <= 0 {
		return Plan{}, fmt.Errorf("invalid projected size %d", projectedSizeBytes)
	}
	if driveSizeBytes <= 0 {
		return Plan{}, fmt.Errorf("invalid drive size %d", driveSizeBytes)
	}

	usable := int64(float64(driveSizeBytes) * (1 - reserveFraction))
	plan := Plan{BitRate: configured, UsableBytes: usable, ProjectedBytes: projectedSizeBytes}
	if projectedSizeBytes <= usable {
		return plan, nil
	}

	scaled := int(float64(configured) * float64(usable) / float64(projectedSizeBytes))
	if scaled < MinBitRate {
		scaled = MinBitRate
	}
	plan.BitRate = scaled
	plan.Reduced = true
	plan.ProjectedBytes = int64(float64(projectedSizeBytes) * float64(scaled) / float64(configured))

	if plan.ProjectedBytes > usable {
		return plan, fmt.Errorf("%w: need %d bytes, usable %d", ErrDoesNotFit, plan.ProjectedBytes, usable)
	}
	return plan, nil
}
