package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dealerops/featuresync/match"
)

// LoadDictionary reads the feature dictionary YAML: a mapping from
// canonical checkbox id to alias list. Decoding goes through yaml.Node so
// file order survives into the dictionary — a plain map would scramble the
// matcher's tie-break order.
func LoadDictionary(path string) (*match.Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("config: parse dictionary %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("config: dictionary %s: empty document", path)
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: dictionary %s: top level must be a mapping", path)
	}

	dict := match.NewDictionary()
	for i := 0; i+1 < len(doc.Content); i += 2 {
		id := doc.Content[i].Value
		var aliases []string
		if err := doc.Content[i+1].Decode(&aliases); err != nil {
			return nil, fmt.Errorf("config: dictionary %s: entry %q: %w", path, id, err)
		}
		dict.Add(id, aliases...)
	}

	if dict.Len() == 0 {
		return nil, fmt.Errorf("config: dictionary %s: no entries", path)
	}
	return dict, nil
}
