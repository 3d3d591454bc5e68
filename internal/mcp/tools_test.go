package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSceneAddInput_JSONRoundTrip(t *testing.T) {
	season := 2
	in := SceneAddInput{
		Project: "The Pilot", SceneNumber: 4, Season: &season,
		Content: "INT. LAB - DAY\n\nShe works.\n", Position: "after",
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out SceneAddInput
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Project, out.Project)
	assert.Equal(t, in.SceneNumber, out.SceneNumber)
	require.NotNil(t, out.Season)
	assert.Equal(t, season, *out.Season)
	assert.Equal(t, in.Position, out.Position)
}

func TestSceneDeleteInput_DefaultsConfirmFalse(t *testing.T) {
	var in SceneDeleteInput
	require.NoError(t, json.Unmarshal([]byte(`{"project":"p","scene_number":1}`), &in))
	assert.False(t, in.Confirm)
}
