package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrips(t *testing.T) {
	c := ComponentDiffuseLighting | ComponentSheen | ComponentAlphaBlending
	got, err := ParseComponentFlags(c.String())
	require.NoError(t, err)
	assert.Equal(t, c, got)

	s := SceneFogLinear | SceneVoxelConeTracing
	gotScene, err := ParseSceneFlags(s.String())
	require.NoError(t, err)
	assert.Equal(t, s, gotScene)

	m := SubmeshPositions | SubmeshNormals | SubmeshTexcoords0
	gotSubmesh, err := ParseSubmeshFlags("positions, normals,texcoords0")
	require.NoError(t, err)
	assert.Equal(t, m, gotSubmesh)
}

func TestParseNoneAndEmpty(t *testing.T) {
	c, err := ParseComponentFlags("none")
	require.NoError(t, err)
	assert.Zero(t, c)
	s, err := ParseShaderFlags("")
	require.NoError(t, err)
	assert.Zero(t, s)
}

func TestParseUnknown(t *testing.T) {
	_, err := ParseSceneFlags("fogLinear|rainbow")
	assert.ErrorIs(t, err, ErrUnknownFlag)
	_, err = ParseLightingModel("toon")
	assert.ErrorIs(t, err, ErrUnknownFlag)
}

func TestParseModels(t *testing.T) {
	lm, err := ParseLightingModel("PBR")
	require.NoError(t, err)
	assert.Equal(t, LightingModelPBR, lm)
	assert.Equal(t, "pbr", lm.String())

	bg, err := ParseBackgroundModel("skybox")
	require.NoError(t, err)
	assert.Equal(t, BackgroundModelSkybox, bg)
	assert.Equal(t, "backgroundModel(9)", BackgroundModelID(9).String())
}
