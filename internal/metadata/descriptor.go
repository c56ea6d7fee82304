package metadata

import (
	"fmt"
	"strings"
	"time"
)

// Descriptor is the per-session metadata document. It is loaded once per run
// and treated as read-only by the pipeline.
type Descriptor struct {
	NWBFile     NWBFile      `yaml:"NWBFile"`
	Subject     *Subject     `yaml:"Subject"`
	Ecephys     Ecephys      `yaml:"Ecephys"`
	Behavior    Behavior     `yaml:"Behavior"`
	LabMetaData *LabMetaData `yaml:"LabMetaData"`
	Output      Output       `yaml:"Output"`

	path string
}

// NWBFile holds the session-level fields of the output container.
type NWBFile struct {
	SessionDescription    string   `yaml:"session_description"`
	Identifier            string   `yaml:"identifier"`
	SessionStartTime      string   `yaml:"session_start_time"`
	SessionID             string   `yaml:"session_id"`
	ExperimentDescription string   `yaml:"experiment_description"`
	Experimenter          []string `yaml:"experimenter"`
	Institution           string   `yaml:"institution"`
	Lab                   string   `yaml:"lab"`
	Keywords              []string `yaml:"keywords"`
	RelatedPublications   []string `yaml:"related_publications"`
	Notes                 string   `yaml:"notes"`
}

// Subject holds demographic fields.
type Subject struct {
	SubjectID   string `yaml:"subject_id"`
	Species     string `yaml:"species"`
	Sex         string `yaml:"sex"`
	Age         string `yaml:"age"`
	Genotype    string `yaml:"genotype"`
	Strain      string `yaml:"strain"`
	Weight      string `yaml:"weight"`
	DateOfBirth string `yaml:"date_of_birth"`
	Description string `yaml:"description"`
}

// Ecephys describes the recording hardware.
type Ecephys struct {
	Device           []Device           `yaml:"Device"`
	ElectrodeGroup   []ElectrodeGroup   `yaml:"ElectrodeGroup"`
	ElectricalSeries []ElectricalSeries `yaml:"ElectricalSeries"`
	Electrodes       Electrodes         `yaml:"Electrodes"`
}

type Device struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Manufacturer string `yaml:"manufacturer"`
}

type ElectrodeGroup struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Location    string `yaml:"location"`
	Device      string `yaml:"device"`
}

type ElectricalSeries struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Electrodes carries per-site defaults. HighPassFiltered overrides the flag
// found in the processed data when set.
type Electrodes struct {
	Location         string `yaml:"location"`
	HighPassFiltered *bool  `yaml:"hp_filtered"`
}

// Behavior names the behavioral series written under processing/behavior.
type Behavior struct {
	Position Position `yaml:"Position"`
	Licks    Series   `yaml:"Licks"`
}

type Position struct {
	Name           string `yaml:"name"`
	ReferenceFrame string `yaml:"reference_frame"`
	Virtual        Series `yaml:"virtual"`
	Physical       Series `yaml:"physical"`
}

type Series struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Unit        string  `yaml:"unit"`
	Conversion  float64 `yaml:"conversion"`
}

// LabMetaData is the lab-specific extension block. Unknown keys are kept in
// Extra and written alongside the known fields.
type LabMetaData struct {
	Name           string         `yaml:"name"`
	BrainRegion    string         `yaml:"brain_region"`
	MovieStartTime *float64       `yaml:"movie_start_time"`
	Extra          map[string]any `yaml:",inline"`
}

// Output controls output file naming.
type Output struct {
	FileName string `yaml:"file_name"`
}

// Path returns the file the descriptor was loaded from, if any.
func (d *Descriptor) Path() string {
	return d.path
}

var startTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// StartTime parses NWBFile.session_start_time.
func (d *Descriptor) StartTime() (time.Time, error) {
	raw, err := d.require("NWBFile.session_start_time", d.NWBFile.SessionStartTime)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range startTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("NWBFile.session_start_time: unrecognized timestamp %q", raw)
}

// PrimaryDevice returns the first configured device.
func (d *Descriptor) PrimaryDevice() (Device, error) {
	if len(d.Ecephys.Device) == 0 {
		return Device{}, &MissingKeyError{Key: "Ecephys.Device"}
	}
	dev := d.Ecephys.Device[0]
	if _, err := d.require("Ecephys.Device[0].name", dev.Name); err != nil {
		return Device{}, err
	}
	return dev, nil
}

// PrimaryElectrodeGroup returns the first configured electrode group. Only a
// single probe per session is supported.
func (d *Descriptor) PrimaryElectrodeGroup() (ElectrodeGroup, error) {
	if len(d.Ecephys.ElectrodeGroup) == 0 {
		return ElectrodeGroup{}, &MissingKeyError{Key: "Ecephys.ElectrodeGroup"}
	}
	group := d.Ecephys.ElectrodeGroup[0]
	if _, err := d.require("Ecephys.ElectrodeGroup[0].name", group.Name); err != nil {
		return ElectrodeGroup{}, err
	}
	return group, nil
}

// PrimaryElectricalSeries returns the raw series naming, defaulting to
// "ElectricalSeries" when the section is absent.
func (d *Descriptor) PrimaryElectricalSeries() ElectricalSeries {
	if len(d.Ecephys.ElectricalSeries) == 0 || strings.TrimSpace(d.Ecephys.ElectricalSeries[0].Name) == "" {
		return ElectricalSeries{Name: "ElectricalSeries", Description: "raw acquisition traces"}
	}
	return d.Ecephys.ElectricalSeries[0]
}

// RequireSubject returns the subject block after checking its required keys.
func (d *Descriptor) RequireSubject() (*Subject, error) {
	if d.Subject == nil {
		return nil, &MissingKeyError{Key: "Subject"}
	}
	if _, err := d.require("Subject.subject_id", d.Subject.SubjectID); err != nil {
		return nil, err
	}
	if _, err := d.require("Subject.species", d.Subject.Species); err != nil {
		return nil, err
	}
	return d.Subject, nil
}

// Validate checks every key the pipeline treats as required, so a run fails
// before any output is produced.
func (d *Descriptor) Validate() error {
	checks := []struct {
		key   string
		value string
	}{
		{"NWBFile.session_description", d.NWBFile.SessionDescription},
		{"NWBFile.identifier", d.NWBFile.Identifier},
	}
	for _, c := range checks {
		if _, err := d.require(c.key, c.value); err != nil {
			return err
		}
	}
	if _, err := d.StartTime(); err != nil {
		return err
	}
	if _, err := d.RequireSubject(); err != nil {
		return err
	}
	if _, err := d.PrimaryDevice(); err != nil {
		return err
	}
	if _, err := d.PrimaryElectrodeGroup(); err != nil {
		return err
	}
	return nil
}

func (d *Descriptor) require(key, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &MissingKeyError{Key: key}
	}
	return trimmed, nil
}
