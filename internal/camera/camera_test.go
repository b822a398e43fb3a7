package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDisplayOrientation(t *testing.T) {
	back := Info{Facing: FacingBack, Orientation: 90}
	front := Info{Facing: FacingFront, Orientation: 270}

	tests := []struct {
		info     Info
		rotation int
		want     int
	}{
		{back, 0, 90},
		{back, 90, 0},
		{back, 180, 270},
		{back, 270, 180},
		{front, 0, 90},
		{front, 90, 0},
		{front, 180, 270},
		{front, 270, 180},
		{Info{Facing: FacingBack, Orientation: 0}, 90, 270},
		{Info{Facing: FacingFront, Orientation: 0}, 0, 0},
		// Negative and oversized rotations are normalized.
		{back, -90, 180},
		{back, 450, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayOrientation(tt.info, tt.rotation),
			"%s camera at %d, display at %d", tt.info.Facing, tt.info.Orientation, tt.rotation)
	}
}

func TestLandscape(t *testing.T) {
	assert.False(t, Landscape(0))
	assert.True(t, Landscape(90))
	assert.False(t, Landscape(180))
	assert.True(t, Landscape(270))
}

func TestFacing(t *testing.T) {
	assert.Equal(t, FacingFront, FacingBack.Toggle())
	assert.Equal(t, FacingBack, FacingFront.Toggle())

	f, err := ParseFacing("Front")
	require.NoError(t, err)
	assert.Equal(t, FacingFront, f)
	f, err = ParseFacing("rear")
	require.NoError(t, err)
	assert.Equal(t, FacingBack, f)
	_, err = ParseFacing("sideways")
	assert.Error(t, err)
}

func TestFacingYAML(t *testing.T) {
	var v struct {
		Facing Facing `yaml:"facing"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("facing: front\n"), &v))
	assert.Equal(t, FacingFront, v.Facing)

	out, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "facing: front\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("facing: up\n"), &v))
}

func TestSupportsFocus(t *testing.T) {
	modes := []FocusMode{FocusFixed, FocusContinuousVideo}
	assert.True(t, SupportsFocus(modes, FocusContinuousVideo))
	assert.False(t, SupportsFocus(modes, FocusAuto))
}

func TestOpenSource(t *testing.T) {
	c, err := OpenSource("testpattern:15")
	require.NoError(t, err)
	assert.Equal(t, 15, c.(*TestPattern).FrameRate)

	_, err = OpenSource("testpattern:fast")
	assert.Error(t, err)

	_, err = OpenSource("nonesuch:")
	assert.Error(t, err)

	assert.Contains(t, Registered(), "testpattern")
}
