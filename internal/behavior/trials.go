package behavior

import (
	"slices"

	"nwbconv/internal/nwb"
)

// DeriveTrials builds one trial per distinct trial id, ordered by ascending
// id. A trial spans the first and last position timestamp carrying its id,
// and its contrast is contrast[id-1].
func DeriveTrials(ids []int, times, contrast []float64) ([]nwb.Trial, error) {
	if len(ids) != len(times) {
		return nil, shapeError("trial", "%d trial ids for %d timestamps", len(ids), len(times))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	type span struct{ first, last int }
	spans := make(map[int]*span)
	for i, id := range ids {
		if id < 1 {
			return nil, shapeError("trial", "trial id %d at sample %d is not 1-indexed", id, i)
		}
		if s, ok := spans[id]; ok {
			s.last = i
			continue
		}
		spans[id] = &span{first: i, last: i}
	}

	unique := make([]int, 0, len(spans))
	for id := range spans {
		unique = append(unique, id)
	}
	slices.Sort(unique)

	if maxID := unique[len(unique)-1]; len(contrast) < maxID {
		return nil, shapeError("trial_contrast", "%d values for max trial id %d", len(contrast), maxID)
	}

	trials := make([]nwb.Trial, 0, len(unique))
	for _, id := range unique {
		s := spans[id]
		trials = append(trials, nwb.Trial{
			StartTime: times[s.first],
			StopTime:  times[s.last],
			Contrast:  contrast[id-1],
		})
	}
	return trials, nil
}
