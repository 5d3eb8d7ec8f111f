package job

import (
	"fmt"

	"github.com/backmassage/mangaup/internal/config"
)

// Preset is a named denoise/tile-size bundle.
type Preset struct {
	Name     config.QualityPreset
	Denoise  int
	TileSize int
}

var presets = map[config.QualityPreset]Preset{
	config.QualityFast:     {Name: config.QualityFast, Denoise: -1, TileSize: 0},
	config.QualityBalanced: {Name: config.QualityBalanced, Denoise: 0, TileSize: 0},
	config.QualityBest:     {Name: config.QualityBest, Denoise: 2, TileSize: 200},
}

// Presets returns the known presets from fastest to slowest.
func Presets() []Preset {
	return []Preset{
		presets[config.QualityFast],
		presets[config.QualityBalanced],
		presets[config.QualityBest],
	}
}

// ResolveQuality looks up the named preset and applies explicit overrides.
// A nil override keeps the preset's value for that field.
func ResolveQuality(name config.QualityPreset, denoise, tileSize *int) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown quality preset %q", name)
	}
	if denoise != nil {
		p.Denoise = *denoise
	}
	if tileSize != nil {
		p.TileSize = *tileSize
	}
	return p, nil
}
