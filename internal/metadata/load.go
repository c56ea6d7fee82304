package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a single-document YAML descriptor.
func Load(path string) (*Descriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer file.Close()

	desc, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	desc.path = path
	return desc, nil
}

// Decode parses a descriptor from r.
func Decode(r io.Reader) (*Descriptor, error) {
	var desc Descriptor
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&desc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty metadata document")
		}
		return nil, err
	}
	return &desc, nil
}

// BatchEntry describes one conversion in a multi-document batch file.
type BatchEntry struct {
	InputFile        string   `yaml:"input_file"`
	InputFiles       []string `yaml:"input_files"`
	OutputFile       string   `yaml:"output_file"`
	Metafile         string   `yaml:"metafile"`
	IncludeProcessed *bool    `yaml:"include_processed"`
	IncludeRaw       *bool    `yaml:"include_raw"`
	RunSpikeSorting  *bool    `yaml:"run_spike_sorting"`
}

// Inputs returns every source path named by the entry.
func (e BatchEntry) Inputs() []string {
	inputs := make([]string, 0, len(e.InputFiles)+1)
	if strings.TrimSpace(e.InputFile) != "" {
		inputs = append(inputs, strings.TrimSpace(e.InputFile))
	}
	for _, in := range e.InputFiles {
		if strings.TrimSpace(in) != "" {
			inputs = append(inputs, strings.TrimSpace(in))
		}
	}
	return inputs
}

// LoadAll reads every YAML document in a batch file. Relative paths are
// resolved against the batch file's directory.
func LoadAll(path string) ([]BatchEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer file.Close()

	base := filepath.Dir(path)
	decoder := yaml.NewDecoder(file)
	var entries []BatchEntry
	for index := 0; ; index++ {
		var entry BatchEntry
		err := decoder.Decode(&entry)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse batch document %d: %w", index, err)
		}
		if len(entry.Inputs()) == 0 {
			return nil, &MissingKeyError{Key: fmt.Sprintf("document[%d].input_file", index)}
		}
		if strings.TrimSpace(entry.Metafile) == "" {
			return nil, &MissingKeyError{Key: fmt.Sprintf("document[%d].metafile", index)}
		}
		entry.InputFile = ""
		entry.InputFiles = resolveAll(base, entry.Inputs())
		entry.Metafile = resolve(base, entry.Metafile)
		if strings.TrimSpace(entry.OutputFile) != "" {
			entry.OutputFile = resolve(base, entry.OutputFile)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func resolveAll(base string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = resolve(base, p)
	}
	return out
}

func resolve(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
