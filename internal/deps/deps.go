package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external executable a conversion may invoke.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one Requirement on PATH.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// Resolve looks up a single requirement.
func Resolve(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	st := Status{Requirement: req}
	if req.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return st
	}
	st.Path, st.Available = path, true
	return st
}

// CheckBinaries resolves every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		out[i] = Resolve(req)
	}
	return out
}

// Missing filters statuses down to required tools that were not found.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, st := range statuses {
		if st.Optional || st.Available {
			continue
		}
		out = append(out, st)
	}
	return out
}
