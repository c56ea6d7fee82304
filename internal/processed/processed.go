package processed

import (
	"fmt"

	"nwbconv/internal/services"
)

// Data is the behavioral and spike-sorting content of one processed session
// file, already converted to Go-native layout.
type Data struct {
	PositionTime  []float64 // post
	Position      []float64 // posx
	Trial         []int     // 1-indexed trial id per position sample
	TrialContrast []float64
	TrialGain     []float64
	LickPosition  []float64
	LickTime      []float64

	Sorting Sorting
}

// Sorting holds the spike-sorting struct.
type Sorting struct {
	SpikeTimes         []float64
	Clusters           []int64 // cluster id per spike
	ClusterIDs         []int64 // curated cluster ids
	ClusterGroups      []int64 // phy group code per curated cluster
	SpikeTemplates     []int64 // template id per spike
	TemplateAmplitudes []float64
	XCoords            []float64
	YCoords            []float64
	Templates          [][][]float64 // template x sample x channel
	SampleRate         float64
	NumChannels        int
	DatPath            string
	Dtype              string
	Offset             int64
	HighPassFiltered   bool
}

// Loader reads a processed session file.
type Loader interface {
	Load(path string) (*Data, error)
}

// Validate checks the parallel-array invariants the builders rely on.
func (d *Data) Validate() error {
	if len(d.PositionTime) != len(d.Position) {
		return shapeErr("posx has %d samples, post has %d", len(d.Position), len(d.PositionTime))
	}
	if len(d.Trial) != len(d.PositionTime) {
		return shapeErr("trial has %d samples, post has %d", len(d.Trial), len(d.PositionTime))
	}
	s := d.Sorting
	if len(s.Clusters) != len(s.SpikeTimes) {
		return shapeErr("sp.clu has %d entries, sp.st has %d", len(s.Clusters), len(s.SpikeTimes))
	}
	// Template assignments are optional; when given they cover every spike.
	if len(s.SpikeTemplates) > 0 && len(s.SpikeTemplates) != len(s.SpikeTimes) {
		return shapeErr("sp.spikeTemplates has %d entries, sp.st has %d", len(s.SpikeTemplates), len(s.SpikeTimes))
	}
	if len(s.TemplateAmplitudes) > 0 && len(s.TemplateAmplitudes) != len(s.SpikeTimes) {
		return shapeErr("sp.tempScalingAmps has %d entries, sp.st has %d", len(s.TemplateAmplitudes), len(s.SpikeTimes))
	}
	if (len(s.SpikeTemplates) > 0) != (len(s.TemplateAmplitudes) > 0) {
		return shapeErr("sp.spikeTemplates and sp.tempScalingAmps must be given together")
	}
	if len(s.ClusterGroups) != len(s.ClusterIDs) {
		return shapeErr("sp.cgs has %d entries, sp.cids has %d", len(s.ClusterGroups), len(s.ClusterIDs))
	}
	if len(s.XCoords) != len(s.YCoords) {
		return shapeErr("sp.xcoords has %d entries, sp.ycoords has %d", len(s.XCoords), len(s.YCoords))
	}
	return nil
}

func shapeErr(format string, args ...any) error {
	return services.Wrap(services.ErrDataShape, "processed", "validate", fmt.Sprintf(format, args...), nil)
}
