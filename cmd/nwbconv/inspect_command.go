package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"nwbconv/internal/nwb"
	"nwbconv/internal/nwbhdf5"
)

func newInspectCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "inspect <file.nwb>",
		Short:       "Summarize the contents of a written NWB file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := nwbhdf5.Summarize(args[0])
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if jsonOut {
				return p.json(summary)
			}
			rows := summaryRows(summary)
			if p.color {
				fmt.Fprintln(p.w, renderTable([]tableColumn{{Header: "Field"}, {Header: "Value", Align: alignRight}}, rows))
				return nil
			}
			for _, row := range rows {
				fmt.Fprintf(p.w, "%s: %s\n", row[0], row[1])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func summaryRows(s nwb.Summary) [][]string {
	return [][]string{
		{"Identifier", s.Identifier},
		{"Electrodes", strconv.Itoa(s.Electrodes)},
		{"Electrode groups", strconv.Itoa(s.ElectrodeGroups)},
		{"Units", strconv.Itoa(s.Units)},
		{"Template units", strconv.Itoa(s.TemplateUnits)},
		{"Trials", strconv.Itoa(s.Trials)},
		{"Spatial series", strconv.Itoa(s.SpatialSeries)},
		{"Event series", strconv.Itoa(s.EventSeries)},
		{"Acquisition", strconv.Itoa(s.Acquisition)},
		{"Subject", yesNo(s.HasSubject)},
		{"Lab metadata", yesNo(s.HasLabMetaData)},
	}
}
