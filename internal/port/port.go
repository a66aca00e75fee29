package port

import (
	"fmt"

	"github.com/firefly-engineering/volsync/internal/volume"
)

// MaxPort is the highest valid TCP port.
const MaxPort = 65535

// Assign sets Port = base + i for the i-th volume (1-based).
func Assign(vols []*volume.Config, base int) error {
	if last := base + len(vols); last > MaxPort {
		return fmt.Errorf("not enough ports after %d for %d volumes", base, len(vols))
	}
	for i, v := range vols {
		v.Port = base + i + 1
	}
	return Validate(vols)
}

// Validate checks that every volume has a distinct, valid port.
func Validate(vols []*volume.Config) error {
	used := make(map[int]string, len(vols))
	for _, v := range vols {
		if v.Port < 1 || v.Port > MaxPort {
			return fmt.Errorf("volume %s: invalid port %d", v.Path, v.Port)
		}
		if other, ok := used[v.Port]; ok {
			return fmt.Errorf("port %d is assigned to both %s and %s", v.Port, other, v.Path)
		}
		used[v.Port] = v.Path
	}
	return nil
}
