package signing

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Sweep walks logBasePath for sealed DeviceFiles lacking a committed
// signature and signs each one. A file is sealed once its date stem is
// strictly earlier than today (spec.md §4.4: "Triggered by SEALED events
// and by a scheduled sweep ... that finds sealed files lacking a .sig
// sidecar").
func (e *Engine) Sweep(ctx context.Context, logBasePath string, today string) error {
	return filepath.Walk(logBasePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".log") {
			return nil
		}

		date := fileDateFromPath(path)
		if date >= today {
			return nil // not yet sealed
		}

		deviceID := filepath.Base(filepath.Dir(path))

		if err := e.SignFile(ctx, path, deviceID); err != nil {
			e.log.Errorf("signing: sweep failed for %s: %v", path, err)
		}
		return nil
	})
}
