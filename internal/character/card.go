// Package character supplies the conversational context: persona cards, the
// ambient track catalog, and the system-instruction builder.
package character

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Card describes one companion persona.
type Card struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Voice         string `yaml:"voice" json:"voice,omitempty"`
	Persona       string `yaml:"persona" json:"persona,omitempty"`
	Greeting      string `yaml:"greeting" json:"greeting,omitempty"`
	DefaultSound  string `yaml:"default_sound" json:"default_sound,omitempty"`
	DefaultVolume int    `yaml:"default_volume" json:"default_volume,omitempty"`
}

// ReadCard executes the readCard function.
func ReadCard(path string) (Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Card{}, err
	}
	var card Card
	if err := yaml.Unmarshal(data, &card); err != nil {
		return Card{}, err
	}
	if card.ID == "" {
		card.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if card.Name == "" {
		card.Name = card.ID
	}
	return card, nil
}

// ScanCards reads every character card under dir, sorted by ID. Files that
// fail to parse are skipped.
func ScanCards(dir string) []Card {
	cards := []Card{}
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d == nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		card, err := ReadCard(path)
		if err != nil {
			return nil
		}
		cards = append(cards, card)
		return nil
	})

	sort.Slice(cards, func(i, j int) bool {
		return cards[i].ID < cards[j].ID
	})
	return cards
}
