package scan

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// strategyFile is the on-disk shape of a strategy list.
type strategyFile struct {
	Strategies []Strategy `yaml:"strategies"`
}

// LoadStrategies reads selector strategies from a YAML file so new fallbacks
// can ship without a code change. Each entry needs a name and a selector.
func LoadStrategies(path string) ([]Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scan: read strategy file %s", path)
	}

	var f strategyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "scan: parse strategy file %s", path)
	}

	for i, st := range f.Strategies {
		if st.Selector == "" {
			return nil, eris.Errorf("scan: strategy %d (%s) has no selector", i, st.Name)
		}
	}
	return f.Strategies, nil
}
