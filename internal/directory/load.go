package directory

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recon/internal/ids"
)

type resultsFile struct {
	Results []resultEntry `yaml:"results"`
}

type resultEntry struct {
	Aci   string `yaml:"aci"`
	Phone string `yaml:"phone"`
	Trust string `yaml:"trust,omitempty"`
}

// LoadResults reads directory answers from a YAML file:
//
//	results:
//	  - aci: 5b2c...
//	    phone: "+16505550001"
//	    trust: low   # optional, defaults to high
//
// Unknown fields are rejected.
func LoadResults(path string) ([]Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	return ParseResults(data)
}

// ParseResults parses the LoadResults format from memory.
func ParseResults(data []byte) ([]Result, error) {
	var file resultsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	results := make([]Result, 0, len(file.Results))
	for i, e := range file.Results {
		aci, err := ids.ParseAci(e.Aci)
		if err != nil {
			return nil, fmt.Errorf("results[%d]: %w", i, err)
		}
		phone, err := ids.ParseE164(e.Phone)
		if err != nil {
			return nil, fmt.Errorf("results[%d]: %w", i, err)
		}
		trust := ids.TrustHigh
		if e.Trust != "" {
			if trust, err = ids.ParseTrust(e.Trust); err != nil {
				return nil, fmt.Errorf("results[%d]: %w", i, err)
			}
		}
		results = append(results, Result{Aci: aci, Phone: phone, Trust: trust})
	}
	return results, nil
}
