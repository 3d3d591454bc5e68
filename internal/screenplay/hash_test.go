package screenplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSceneHash_StableAcrossBoneyard(t *testing.T) {
	text := "INT. OFFICE - DAY\n\nAlice enters."
	boneyard := "\n\n/* SCRIPTRAG-META-START\n{\"analyzed\":true}\nSCRIPTRAG-META-END */"

	plain := ComputeSceneHash(text, false)
	annotated := ComputeSceneHash(text+boneyard, false)

	assert.Equal(t, plain, annotated)
}

func TestComputeSceneHash_Truncated(t *testing.T) {
	full := ComputeSceneHash("hello", false)
	short := ComputeSceneHash("hello", true)

	require.Len(t, full, 64)
	require.Len(t, short, 16)
	assert.Equal(t, full[:16], short)
}

func TestStripBoneyard_MultipleRegions(t *testing.T) {
	text := "before " +
		"/* SCRIPTRAG-META-START\n{}\nSCRIPTRAG-META-END */" +
		" middle " +
		"/* SCRIPTRAG-META-START\n{}\nSCRIPTRAG-META-END */" +
		" after"

	got := StripBoneyard(text)
	assert.Equal(t, "before middle after", got)
}

func TestStripBoneyard_NoMatch(t *testing.T) {
	text := "INT. OFFICE - DAY\n\nAlice enters."
	assert.Equal(t, text, StripBoneyard(text))
}
