package ecephys

import (
	"fmt"

	"nwbconv/internal/nwb"
	"nwbconv/internal/processed"
	"nwbconv/internal/services"
)

var qualityLabels = map[int64]string{
	0: "noise",
	1: "mua",
	2: "good",
	3: "unsorted",
}

// QualityLabel maps a phy cluster group code to its label.
func QualityLabel(code int64) string {
	if label, ok := qualityLabels[code]; ok {
		return label
	}
	return "unsorted"
}

// BuildUnits returns one unit per curated cluster id in the order listed.
func BuildUnits(s processed.Sorting, group *nwb.ElectrodeGroup) ([]nwb.Unit, error) {
	if len(s.Clusters) != len(s.SpikeTimes) {
		return nil, shapeErr("units", "%d cluster assignments for %d spikes", len(s.Clusters), len(s.SpikeTimes))
	}
	if len(s.ClusterGroups) != len(s.ClusterIDs) {
		return nil, shapeErr("units", "%d cluster groups for %d cluster ids", len(s.ClusterGroups), len(s.ClusterIDs))
	}

	byCluster := make(map[int64][]int)
	for i, c := range s.Clusters {
		byCluster[c] = append(byCluster[c], i)
	}

	units := make([]nwb.Unit, 0, len(s.ClusterIDs))
	for i, cid := range s.ClusterIDs {
		idx := byCluster[cid]
		times := make([]float64, len(idx))
		var templates []int64
		if len(s.SpikeTemplates) == len(s.SpikeTimes) {
			templates = make([]int64, len(idx))
		}
		for j, k := range idx {
			times[j] = s.SpikeTimes[k]
			if templates != nil {
				templates[j] = s.SpikeTemplates[k]
			}
		}
		waveform, err := MeanWaveform(templates, s.Templates)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", cid, err)
		}
		units = append(units, nwb.Unit{
			ID:           int(cid),
			SpikeTimes:   times,
			Quality:      QualityLabel(s.ClusterGroups[i]),
			WaveformMean: waveform,
			Group:        group,
		})
	}
	return units, nil
}

// MeanWaveform averages the templates used by a cluster's spikes, weighting
// each template by how many spikes it produced. It returns nil when there
// are no spikes or no templates.
func MeanWaveform(spikeTemplates []int64, templates [][][]float64) ([][]float64, error) {
	if len(spikeTemplates) == 0 || len(templates) == 0 {
		return nil, nil
	}
	counts := make(map[int64]int)
	for _, tid := range spikeTemplates {
		if tid < 0 || int(tid) >= len(templates) {
			return nil, shapeErr("waveform", "template id %d outside %d templates", tid, len(templates))
		}
		counts[tid]++
	}

	ref := templates[spikeTemplates[0]]
	samples := len(ref)
	channels := 0
	if samples > 0 {
		channels = len(ref[0])
	}
	mean := make([][]float64, samples)
	for i := range mean {
		mean[i] = make([]float64, channels)
	}
	total := float64(len(spikeTemplates))
	for tid, n := range counts {
		w := float64(n) / total
		tmpl := templates[tid]
		if len(tmpl) != samples {
			return nil, shapeErr("waveform", "template %d has %d samples, want %d", tid, len(tmpl), samples)
		}
		for i, row := range tmpl {
			if len(row) != channels {
				return nil, shapeErr("waveform", "template %d has %d channels, want %d", tid, len(row), channels)
			}
			for c, v := range row {
				mean[i][c] += w * v
			}
		}
	}
	return mean, nil
}

// BuildTemplateUnits returns one template unit per template id that produced
// spikes, ordered by template id, carrying each spike's scaling amplitude.
func BuildTemplateUnits(spikeTimes []float64, spikeTemplates []int64, amplitudes []float64, group *nwb.ElectrodeGroup) ([]nwb.TemplateUnit, error) {
	if len(spikeTemplates) != len(spikeTimes) {
		return nil, shapeErr("template units", "%d template assignments for %d spikes", len(spikeTemplates), len(spikeTimes))
	}
	if len(amplitudes) != len(spikeTimes) {
		return nil, shapeErr("template units", "%d amplitudes for %d spikes", len(amplitudes), len(spikeTimes))
	}
	var maxID int64 = -1
	for _, tid := range spikeTemplates {
		if tid < 0 {
			return nil, shapeErr("template units", "negative template id %d", tid)
		}
		maxID = max(maxID, tid)
	}
	units := make([]nwb.TemplateUnit, maxID+1)
	for i := range units {
		units[i] = nwb.TemplateUnit{ID: i, Group: group}
	}
	for i, tid := range spikeTemplates {
		u := &units[tid]
		u.SpikeTimes = append(u.SpikeTimes, spikeTimes[i])
		u.Amplitudes = append(u.Amplitudes, amplitudes[i])
	}
	out := units[:0]
	for _, u := range units {
		if len(u.SpikeTimes) > 0 {
			out = append(out, u)
		}
	}
	return out, nil
}

func shapeErr(operation, format string, args ...any) error {
	return services.Wrap(services.ErrDataShape, "ecephys", operation, fmt.Sprintf(format, args...), nil)
}
