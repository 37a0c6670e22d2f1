//go:build unix

package image

import (
	"fmt"

	"golang.org/x/sys/unix"

	"bindery/internal/logging"
	"bindery/internal/services"
)

// preflightSpace verifies the staging filesystem can hold the image before
// any tool runs. An unreadable filesystem stat is only logged; the allocation
// itself will surface a real shortage.
func (b *Builder) preflightSpace(need int64) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(b.cfg.Paths.StagingDir, &stat); err != nil {
		b.logger.Debug("staging filesystem stat failed", logging.Error(err))
		return nil
	}
	free := int64(stat.Bavail) * int64(stat.Bsize)
	if free < need {
		detail := fmt.Sprintf("need %d bytes in %s, %d free", need, b.cfg.Paths.StagingDir, free)
		return services.Wrap(services.ErrValidation, "image", "preflight", detail, nil)
	}
	return nil
}
