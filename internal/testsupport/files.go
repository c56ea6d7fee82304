package testsupport

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	WriteBytes(t, path, buf)
}

// WriteBytes writes data to path, creating parent directories.
func WriteBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSpikeGLX writes a recording of samples x channels int16 values plus
// its .meta sidecar into dir and returns the .bin path. Sample s on channel c
// holds s*channels+c.
func WriteSpikeGLX(t testing.TB, dir, name string, channels, samples int, rate float64) string {
	t.Helper()
	data := make([]int16, channels*samples)
	for i := range data {
		data[i] = int16(i)
	}
	raw := make([]byte, 2*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}
	binPath := filepath.Join(dir, name+".bin")
	WriteBytes(t, binPath, raw)

	meta := fmt.Sprintf("fileSizeBytes=%d\nimSampRate=%g\nnSavedChans=%d\nimAiRangeMax=0.6\nimMaxInt=512\ntypeThis=imec\n~snsChanMap=(%d,%d,0)\n",
		len(raw), rate, channels, channels, channels)
	WriteBytes(t, filepath.Join(dir, name+".meta"), []byte(meta))
	return binPath
}

// WriteDescriptor writes a YAML descriptor body to dir/name and returns the path.
func WriteDescriptor(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	WriteBytes(t, path, []byte(body))
	return path
}

// SessionDescriptor is a complete descriptor accepted by the pipeline.
const SessionDescriptor = `NWBFile:
  session_description: virtual reality foraging on a gain-manipulated track
  identifier: npI5_0417_baseline_1
  session_start_time: "2019-04-17T10:00:00Z"
  session_id: baseline_1
  experimenter: [Malcolm Campbell]
  institution: Stanford University
  lab: Giocomo
Subject:
  subject_id: npI5
  species: Mus musculus
  sex: M
  age: P90D
Ecephys:
  Device:
    - name: Neuropixels
      description: Neuropixels 1.0 probe
  ElectrodeGroup:
    - name: shank0
      description: single shank
      location: MEC
      device: Neuropixels
  ElectricalSeries:
    - name: ElectricalSeries
      description: raw acquisition traces
Behavior:
  Position:
    name: Position
LabMetaData:
  name: LabMetaData
  brain_region: medial entorhinal cortex
  movie_start_time: 12.5
`
