package ecephys

import (
	"fmt"
	"math"
	"strings"

	"nwbconv/internal/metadata"
	"nwbconv/internal/nwb"
	"nwbconv/internal/services"
	"nwbconv/internal/textutil"
)

const (
	FilteredDescription   = "The raw voltage signals from the electrodes were high-pass filtered"
	UnfilteredDescription = "The raw voltage signals from the electrodes were not high-pass filtered"
)

// FilteringDescription picks the electrode filtering text for the flag.
func FilteringDescription(highPassFiltered bool) string {
	return textutil.Ternary(highPassFiltered, FilteredDescription, UnfilteredDescription)
}

// SetupProbe creates the device and its single electrode group.
func SetupProbe(f *nwb.File, dev metadata.Device, group metadata.ElectrodeGroup) (*nwb.ElectrodeGroup, error) {
	device, err := f.CreateDevice(nwb.Device{
		Name:         dev.Name,
		Description:  dev.Description,
		Manufacturer: dev.Manufacturer,
	})
	if err != nil {
		return nil, err
	}
	if group.Device != "" && group.Device != dev.Name {
		return nil, services.Wrap(services.ErrValidation, "ecephys", "electrode group",
			fmt.Sprintf("group %q references unknown device %q", group.Name, group.Device), nil)
	}
	return f.CreateElectrodeGroup(nwb.ElectrodeGroup{
		Name:        group.Name,
		Description: group.Description,
		Location:    group.Location,
		Device:      device,
	})
}

// ElectrodeOptions carries per-site values shared by every electrode.
type ElectrodeOptions struct {
	Location         string
	HighPassFiltered bool
}

// BuildElectrodes returns one electrode per probe channel. Absolute
// coordinates and impedance are unknown and set to NaN.
func BuildElectrodes(xcoords, ycoords []float64, group *nwb.ElectrodeGroup, opts ElectrodeOptions) ([]nwb.Electrode, error) {
	if len(xcoords) != len(ycoords) {
		return nil, services.Wrap(services.ErrDataShape, "ecephys", "electrodes",
			fmt.Sprintf("%d x coordinates for %d y coordinates", len(xcoords), len(ycoords)), nil)
	}
	location := strings.TrimSpace(opts.Location)
	if location == "" && group != nil {
		location = group.Location
	}
	if location == "" {
		location = "unknown"
	}
	filtering := FilteringDescription(opts.HighPassFiltered)

	nan := math.NaN()
	electrodes := make([]nwb.Electrode, len(xcoords))
	for i := range xcoords {
		electrodes[i] = nwb.Electrode{
			ID:        i,
			X:         nan,
			Y:         nan,
			Z:         nan,
			Imp:       nan,
			Location:  location,
			Filtering: filtering,
			Group:     group,
			RelX:      xcoords[i],
			RelY:      ycoords[i],
		}
	}
	return electrodes, nil
}
