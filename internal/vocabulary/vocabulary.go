// Package vocabulary loads the static matching data: the skill vocabulary,
// the section anchors and the category taxonomy. Loaded data is never
// mutated and may be shared between goroutines.
package vocabulary

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultData []byte

// GeneralCategory is returned by Route when no category overlaps the résumé.
const GeneralCategory = "General"

type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Anchors are the keywords that open a résumé section, in priority order.
type Anchors struct {
	Education  []string `yaml:"education"`
	Experience []string `yaml:"experience"`
}

type Data struct {
	Version    int         `yaml:"version"`
	Skills     SkillGroups `yaml:"skills"`
	Anchors    Anchors     `yaml:"anchors"`
	TitleHints []string    `yaml:"title-hints"`
	Categories []Category  `yaml:"categories"`

	skillList []string
}

type SkillGroup struct {
	Name   string
	Skills []string
}

// SkillGroups keeps the declaration order of the YAML mapping; the order of
// the flat skill list follows it.
type SkillGroups []SkillGroup

func (g *SkillGroups) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: skills must map a group name to a list", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		group := SkillGroup{Name: node.Content[i].Value}
		if err := node.Content[i+1].Decode(&group.Skills); err != nil {
			return fmt.Errorf("skills group %q: %w", group.Name, err)
		}
		*g = append(*g, group)
	}
	return nil
}

// Default returns the embedded data set.
func Default() (*Data, error) {
	return Parse(defaultData)
}

// Load reads a data file. An empty path yields the embedded defaults.
func Load(path string) (*Data, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary file %q: %w", path, err)
	}

	data, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("vocabulary file %q: %w", path, err)
	}
	return data, nil
}

func Parse(raw []byte) (*Data, error) {
	var data Data
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding vocabulary: %w", err)
	}

	if err := data.normalize(); err != nil {
		return nil, err
	}
	return &data, nil
}

// SkillList returns the flat, ordered skill vocabulary in canonical casing.
func (d *Data) SkillList() []string {
	out := make([]string, len(d.skillList))
	copy(out, d.skillList)
	return out
}

func (d *Data) normalize() error {
	seen := make(map[string]struct{})
	for _, group := range d.Skills {
		for _, skill := range group.Skills {
			skill = strings.TrimSpace(skill)
			if skill == "" {
				continue
			}
			key := strings.ToLower(skill)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			d.skillList = append(d.skillList, skill)
		}
	}
	if len(d.skillList) == 0 {
		return errors.New("skill vocabulary is empty")
	}

	d.Anchors.Education = lowerAll(d.Anchors.Education)
	d.Anchors.Experience = lowerAll(d.Anchors.Experience)
	d.TitleHints = lowerAll(d.TitleHints)

	names := make(map[string]struct{}, len(d.Categories))
	for i := range d.Categories {
		c := &d.Categories[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return fmt.Errorf("category #%d has no name", i+1)
		}
		if strings.EqualFold(c.Name, GeneralCategory) {
			return fmt.Errorf("category name %q is reserved", GeneralCategory)
		}
		if _, ok := names[c.Name]; ok {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		names[c.Name] = struct{}{}
		c.Keywords = lowerAll(splitKeywords(c.Keywords))
	}

	return nil
}

// splitKeywords breaks keywords on the runes the résumé tokenizer treats as
// separators, so "CI/CD" routes on "ci" and "cd". Dots, "+" and "#" are kept
// for node.js, c++ and c#.
func splitKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		out = append(out, strings.FieldsFunc(kw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_.+#", r)
		})...)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
