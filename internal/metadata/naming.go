package metadata

import (
	"strings"

	"nwbconv/internal/textutil"
)

const defaultFileNameTemplate = "{subject_id}_{identifier}.nwb"

// OutputFileName expands Output.file_name. Supported placeholders are
// {subject_id}, {session_id} and {identifier}; each value is reduced to a
// filesystem-safe token.
func (d *Descriptor) OutputFileName() string {
	template := strings.TrimSpace(d.Output.FileName)
	if template == "" {
		template = defaultFileNameTemplate
	}
	subjectID := ""
	if d.Subject != nil {
		subjectID = d.Subject.SubjectID
	}
	name := textutil.SanitizeFileName(textutil.ExpandTemplate(template, map[string]string{
		"subject_id": subjectID,
		"session_id": d.NWBFile.SessionID,
		"identifier": d.NWBFile.Identifier,
	}))
	if !strings.HasSuffix(strings.ToLower(name), ".nwb") {
		name += ".nwb"
	}
	return name
}
