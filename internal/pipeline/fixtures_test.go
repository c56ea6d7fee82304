package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"

	"nwbconv/internal/spikeglx"
)

func writeSorterFixtures(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]any{
		spikeglx.SpikeTimesFile:     []int64{30, 60, 90},
		spikeglx.SpikeTemplatesFile: []int64{0, 1, 1},
		spikeglx.AmplitudesFile:     []float32{5, 6, 7},
	}
	for name, value := range files {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if err := npyio.Write(f, value); err != nil {
			f.Close()
			t.Fatalf("write %s: %v", name, err)
		}
		f.Close()
	}
}
