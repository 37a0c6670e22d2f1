// Package deps reports the availability of the external binaries bindery
// shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"bindery/internal/config"
)

// Requirement defines an external dependency bindery relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the pipeline needs for the given config.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "audio analysis and encoding"},
		{Name: "FFprobe", Command: cfg.Tools.FFprobe, Description: "stream metadata probing"},
	}
	imageOptional := !cfg.Image.Enabled
	reqs = append(reqs,
		Requirement{Name: "mkfs.vfat", Command: cfg.Image.MkfsBinary, Description: "FAT filesystem formatting", Optional: imageOptional},
		Requirement{Name: "mmd", Command: cfg.Image.MmdBinary, Description: "directory creation inside FAT images", Optional: imageOptional},
		Requirement{Name: "mcopy", Command: cfg.Image.McopyBinary, Description: "file copy into FAT images", Optional: imageOptional},
	)
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
