package behavior

import (
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"nwbconv/internal/metadata"
	"nwbconv/internal/nwb"
)

// SeriesOptions names one output series.
type SeriesOptions struct {
	Name        string
	Description string
	Unit        string
	Conversion  float64
}

// PositionOptions configures the Position container and its two series.
type PositionOptions struct {
	Container      string
	ReferenceFrame string
	Virtual        SeriesOptions
	Physical       SeriesOptions
}

// DefaultPositionOptions returns the names used when the descriptor leaves
// the Behavior section empty.
func DefaultPositionOptions() PositionOptions {
	return PositionOptions{
		Container:      "Position",
		ReferenceFrame: "start of the virtual track",
		Virtual: SeriesOptions{
			Name:        "VirtualPosition",
			Description: "position on the virtual track",
			Unit:        "cm",
			Conversion:  1,
		},
		Physical: SeriesOptions{
			Name:        "PhysicalPosition",
			Description: "position on the virtual track divided by the trial gain",
			Unit:        "cm",
			Conversion:  1,
		},
	}
}

// DefaultLickOptions returns the lick series naming.
func DefaultLickOptions() SeriesOptions {
	return SeriesOptions{
		Name:        "Licks",
		Description: "track position at each detected lick",
		Unit:        "cm",
		Conversion:  1,
	}
}

// OptionsFromDescriptor overlays descriptor values on the defaults.
func OptionsFromDescriptor(b metadata.Behavior) (PositionOptions, SeriesOptions) {
	pos := DefaultPositionOptions()
	pos.Container = orDefault(b.Position.Name, pos.Container)
	pos.ReferenceFrame = orDefault(b.Position.ReferenceFrame, pos.ReferenceFrame)
	pos.Virtual = overlay(pos.Virtual, b.Position.Virtual)
	pos.Physical = overlay(pos.Physical, b.Position.Physical)
	return pos, overlay(DefaultLickOptions(), b.Licks)
}

func overlay(base SeriesOptions, s metadata.Series) SeriesOptions {
	base.Name = orDefault(s.Name, base.Name)
	base.Description = orDefault(s.Description, base.Description)
	base.Unit = orDefault(s.Unit, base.Unit)
	if s.Conversion > 0 {
		base.Conversion = s.Conversion
	}
	return base
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

// SampleRate returns 1/(t[1]-t[0]).
func SampleRate(times []float64) (float64, error) {
	if len(times) < 2 {
		return 0, shapeError("post", "need at least two timestamps, have %d", len(times))
	}
	dt := times[1] - times[0]
	if dt <= 0 {
		return 0, shapeError("post", "first sampling interval %.6g is not positive", dt)
	}
	return 1 / dt, nil
}

// Uniformity describes the spread of sampling intervals.
type Uniformity struct {
	Rate         float64
	MinInterval  float64
	MaxInterval  float64
	MeanInterval float64
	// Deviation is (max-min)/mean of the sampling intervals.
	Deviation float64
	Uniform   bool
}

// CheckUniform reports whether every sampling interval lies within tolerance
// of the others. Rate is always derived from the first interval.
func CheckUniform(times []float64, tolerance float64) (Uniformity, error) {
	rate, err := SampleRate(times)
	if err != nil {
		return Uniformity{}, err
	}
	intervals := make([]float64, len(times)-1)
	floats.SubTo(intervals, times[1:], times[:len(times)-1])

	u := Uniformity{
		Rate:         rate,
		MinInterval:  floats.Min(intervals),
		MaxInterval:  floats.Max(intervals),
		MeanInterval: stat.Mean(intervals, nil),
	}
	if u.MeanInterval > 0 {
		u.Deviation = (u.MaxInterval - u.MinInterval) / u.MeanInterval
	} else {
		u.Deviation = math.Inf(1)
	}
	u.Uniform = u.Deviation <= tolerance
	return u, nil
}

// BuildPositionSeries returns the virtual trace as recorded and the physical
// trace obtained by dividing each sample by the gain of its trial.
func BuildPositionSeries(times, position []float64, ids []int, gain []float64, opts PositionOptions) (nwb.SpatialSeries, nwb.SpatialSeries, error) {
	var virtual, physical nwb.SpatialSeries
	if len(position) != len(times) {
		return virtual, physical, shapeError("posx", "%d samples for %d timestamps", len(position), len(times))
	}
	if len(ids) != len(position) {
		return virtual, physical, shapeError("trial", "%d trial ids for %d samples", len(ids), len(position))
	}
	rate, err := SampleRate(times)
	if err != nil {
		return virtual, physical, err
	}
	if maxID := slices.Max(ids); len(gain) < maxID {
		return virtual, physical, shapeError("trial_gain", "%d values for max trial id %d", len(gain), maxID)
	}

	perSample := make([]float64, len(ids))
	for i, id := range ids {
		if id < 1 {
			return virtual, physical, shapeError("trial", "trial id %d at sample %d is not 1-indexed", id, i)
		}
		perSample[i] = gain[id-1]
	}
	scaled := make([]float64, len(position))
	floats.DivTo(scaled, position, perSample)

	virtual = spatial(opts.Virtual, opts.ReferenceFrame, times[0], rate, slices.Clone(position))
	physical = spatial(opts.Physical, opts.ReferenceFrame, times[0], rate, scaled)
	return virtual, physical, nil
}

func spatial(o SeriesOptions, frame string, start, rate float64, data []float64) nwb.SpatialSeries {
	return nwb.SpatialSeries{
		Name:           o.Name,
		Description:    o.Description,
		Unit:           o.Unit,
		ReferenceFrame: frame,
		Conversion:     o.Conversion,
		StartingTime:   start,
		Rate:           rate,
		Data:           data,
	}
}

// BuildLickSeries pairs each lick position with its timestamp.
func BuildLickSeries(position, times []float64, opts SeriesOptions) (nwb.EventSeries, error) {
	if len(position) != len(times) {
		return nwb.EventSeries{}, shapeError("lickx", "%d lick positions for %d lick timestamps", len(position), len(times))
	}
	return nwb.EventSeries{
		Name:        opts.Name,
		Description: opts.Description,
		Unit:        opts.Unit,
		Data:        slices.Clone(position),
		Timestamps:  slices.Clone(times),
	}, nil
}
