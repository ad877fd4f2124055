package hardware

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// LoadSampler reads the one-minute load average from procfs.
type LoadSampler struct {
	fs procfs.FS
}

// NewLoadSampler opens procfs at mount, normally procfs.DefaultMountPoint.
func NewLoadSampler(mount string) (*LoadSampler, error) {
	fs, err := procfs.NewFS(mount)
	if err != nil {
		return nil, fmt.Errorf("open procfs at %q: %w", mount, err)
	}
	return &LoadSampler{fs: fs}, nil
}

// Load1 returns the current one-minute load average.
func (s *LoadSampler) Load1() (float64, error) {
	avg, err := s.fs.LoadAvg()
	if err != nil {
		return 0, fmt.Errorf("read loadavg: %w", err)
	}
	return avg.Load1, nil
}
