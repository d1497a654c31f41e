package device

import (
	"errors"
	"fmt"
)

// Preset names for common capture sizes
const (
	PresetDefault = "default"
	PresetLow     = "low"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
)

// ErrUnknownPreset is returned for a preset name that does not exist.
var ErrUnknownPreset = errors.New("device: unknown preset")

// Presets returns all available capture presets. Presets carry size and
// frame rate only; the device ID is left empty.
func Presets() map[string]Constraints {
	return map[string]Constraints{
		PresetDefault: {Width: 640, Height: 480},
		// Matches the encoder's default output, so no scaling happens.
		PresetLow:   {Width: 320, Height: 240, FPS: 15},
		Preset720p:  {Width: 1280, Height: 720},
		Preset1080p: {Width: 1920, Height: 1080, FPS: 30},
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLow,
		Preset720p,
		Preset1080p,
	}
}

// GetPreset returns a preset by name.
func GetPreset(name string) (Constraints, bool) {
	c, ok := Presets()[name]
	return c, ok
}

// WithPreset replaces size and frame rate with those of the named preset,
// keeping the device ID.
func (c Constraints) WithPreset(name string) (Constraints, error) {
	p, ok := GetPreset(name)
	if !ok {
		return c, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	c.Width, c.Height, c.FPS = p.Width, p.Height, p.FPS
	return c, nil
}
