package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kverrall/namecue/pkg/types"
)

// CatalogueFile is the top-level structure of a stimulus catalogue YAML file.
//
// Example:
//
//	catalogue:
//	  name: "Household objects"
//	  language: "en-GB"
//	stimuli:
//	  - id: broom
//	    name: broom
//	    alternatives: [sweeper]
//	    category: "a cleaning tool"
type CatalogueFile struct {
	Catalogue CatalogueMeta        `yaml:"catalogue"`
	Stimuli   []StimulusDefinition `yaml:"stimuli"`
}

// CatalogueMeta holds top-level metadata for a catalogue.
type CatalogueMeta struct {
	// Name is the catalogue's display name.
	Name string `yaml:"name"`

	// Description is a free-text summary of the catalogue.
	Description string `yaml:"description"`

	// Language is the BCP 47 tag the stimuli are written in (e.g., "en-GB").
	Language string `yaml:"language"`
}

// StimulusDefinition is the YAML shape of one catalogue stimulus. It mirrors
// [types.Stimulus] with the cue fields optional; whatever is present feeds the
// corresponding cue level.
type StimulusDefinition struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Alternatives []string `yaml:"alternatives"`
	FirstLetter  string   `yaml:"first_letter"`
	Category     string   `yaml:"category"`
	Action       string   `yaml:"action"`
	Association  string   `yaml:"association"`
	Features     string   `yaml:"features"`
	Location     string   `yaml:"location"`
}

// Validate checks a [StimulusDefinition] for required fields.
//
// Rules:
//   - Name must be non-empty.
//   - Every alternative must be non-empty.
//
// An empty ID is allowed; it defaults to the name.
func (d StimulusDefinition) Validate() error {
	var errs []error

	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	for i, alt := range d.Alternatives {
		if alt == "" {
			errs = append(errs, fmt.Errorf("alternatives[%d]: must not be empty", i))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Stimulus converts the definition into the engine's stimulus type.
func (d StimulusDefinition) Stimulus() types.Stimulus {
	id := d.ID
	if id == "" {
		id = d.Name
	}
	return types.Stimulus{
		ID:           id,
		Name:         d.Name,
		Alternatives: d.Alternatives,
		FirstLetter:  d.FirstLetter,
		Category:     d.Category,
		Action:       d.Action,
		Association:  d.Association,
		Features:     d.Features,
		Location:     d.Location,
	}
}

// LoadCatalogueFile reads and parses a catalogue YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadCatalogueFile(path string) (*CatalogueFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: open catalogue file %q: %w", path, err)
	}
	defer f.Close()

	cf, err := LoadCatalogueFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("store: parse catalogue file %q: %w", path, err)
	}
	return cf, nil
}

// LoadCatalogueFromReader parses catalogue YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadCatalogueFromReader(r io.Reader) (*CatalogueFile, error) {
	var cf CatalogueFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("store: decode catalogue yaml: %w", err)
	}
	return &cf, nil
}

// ImportCatalogue saves every stimulus from a parsed [CatalogueFile] into st.
// Returns the number of stimuli successfully imported. A validation or store
// error aborts the import and returns the count so far.
func ImportCatalogue(ctx context.Context, st Store, cat *CatalogueFile) (int, error) {
	if cat == nil {
		return 0, errors.New("store: catalogue must not be nil")
	}
	for i, def := range cat.Stimuli {
		if err := def.Validate(); err != nil {
			return i, fmt.Errorf("store: catalogue %q: stimuli[%d]: %w", cat.Catalogue.Name, i, err)
		}
		stim := def.Stimulus()
		if err := st.SaveStimulus(ctx, &stim); err != nil {
			return i, fmt.Errorf("store: catalogue %q: import %q: %w", cat.Catalogue.Name, stim.ID, err)
		}
	}
	return len(cat.Stimuli), nil
}
