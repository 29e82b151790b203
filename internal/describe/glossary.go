package describe

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed glossary.yaml
var defaultGlossary []byte

// Motif is the symbolism attached to a carved subject.
type Motif struct {
	Name    string `yaml:"name"`
	Meaning string `yaml:"meaning"`
}

// Color describes a jade color grade.
type Color struct {
	Name   string `yaml:"name"`
	Traits string `yaml:"traits"`
}

// Glossary maps lower-case motif and color terms to their symbolism.
type Glossary struct {
	Motifs map[string]Motif `yaml:"motifs"`
	Colors map[string]Color `yaml:"colors"`
}

// DefaultGlossary returns the built-in glossary.
func DefaultGlossary() *Glossary {
	g, err := ParseGlossary(defaultGlossary)
	if err != nil {
		panic(fmt.Sprintf("embedded glossary is invalid: %v", err))
	}
	return g
}

// LoadGlossary reads a glossary file.
func LoadGlossary(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary: %w", err)
	}
	return ParseGlossary(data)
}

// ParseGlossary decodes glossary YAML. Keys are lower-cased.
func ParseGlossary(data []byte) (*Glossary, error) {
	var raw Glossary
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse glossary: %w", err)
	}
	g := &Glossary{
		Motifs: make(map[string]Motif, len(raw.Motifs)),
		Colors: make(map[string]Color, len(raw.Colors)),
	}
	for k, v := range raw.Motifs {
		g.Motifs[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for k, v := range raw.Colors {
		g.Colors[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return g, nil
}

// Context returns the symbolism lines for a motif and color, empty when
// neither term is known.
func (g *Glossary) Context(motif, color string) string {
	var lines []string
	if m, ok := g.Motifs[strings.ToLower(strings.TrimSpace(motif))]; ok {
		lines = append(lines, fmt.Sprintf("圖案「%s」象徵著：%s", shortName(m.Name), m.Meaning))
	}
	if c, ok := g.Colors[strings.ToLower(strings.TrimSpace(color))]; ok {
		lines = append(lines, fmt.Sprintf("此翡翠的顏色為「%s」，其特色是：%s", shortName(c.Name), c.Traits))
	}
	return strings.Join(lines, "\n")
}

// shortName keeps the Chinese part of "觀音 (Guanyin)".
func shortName(name string) string {
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}
