package flags

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFlag is returned when a flag name is not part of a set.
var ErrUnknownFlag = errors.New("flags: unknown flag name")

// parseBits is the inverse of bitNames. Names are separated by '|' or ','; "none" and
// the empty string give zero.
func parseBits(s string, names []string) (uint64, error) {
	var v uint64
	for _, name := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		name = strings.TrimSpace(name)
		if name == "" || name == "none" {
			continue
		}
		i := indexOf(names, name)
		if i < 0 {
			return 0, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
		}
		v |= 1 << i
	}
	return v, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// ParseComponentFlags parses the output of ComponentFlags.String.
func ParseComponentFlags(s string) (ComponentFlags, error) {
	v, err := parseBits(s, componentNames[:])
	return ComponentFlags(v), err
}

// ParseSceneFlags parses the output of SceneFlags.String.
func ParseSceneFlags(s string) (SceneFlags, error) {
	v, err := parseBits(s, sceneNames[:])
	return SceneFlags(v), err
}

// ParseSubmeshFlags parses the output of SubmeshFlags.String.
func ParseSubmeshFlags(s string) (SubmeshFlags, error) {
	v, err := parseBits(s, submeshNames[:])
	return SubmeshFlags(v), err
}

// ParseShaderFlags parses the output of ShaderFlags.String.
func ParseShaderFlags(s string) (ShaderFlags, error) {
	v, err := parseBits(s, shaderNames[:])
	return ShaderFlags(v), err
}

var (
	lightingModelNames   = [...]string{"none", "phong", "pbr"}
	backgroundModelNames = [...]string{"colour", "skybox", "ibl"}
)

func (id LightingModelID) String() string {
	if int(id) < len(lightingModelNames) {
		return lightingModelNames[id]
	}
	return fmt.Sprintf("lightingModel(%d)", uint8(id))
}

func (id BackgroundModelID) String() string {
	if int(id) < len(backgroundModelNames) {
		return backgroundModelNames[id]
	}
	return fmt.Sprintf("backgroundModel(%d)", uint8(id))
}

// ParseLightingModel parses a lighting model name: none, phong or pbr.
func ParseLightingModel(s string) (LightingModelID, error) {
	i := indexOf(lightingModelNames[:], s)
	if i < 0 {
		return 0, fmt.Errorf("%w: lighting model %q", ErrUnknownFlag, s)
	}
	return LightingModelID(i), nil
}

// ParseBackgroundModel parses a background model name: colour, skybox or ibl.
func ParseBackgroundModel(s string) (BackgroundModelID, error) {
	i := indexOf(backgroundModelNames[:], s)
	if i < 0 {
		return 0, fmt.Errorf("%w: background model %q", ErrUnknownFlag, s)
	}
	return BackgroundModelID(i), nil
}
