package validators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/oleparse"

	"github.com/docgate/docgate/internal/types"
)

// oleBlob is an OLE-signed payload padded to one header sector.
func oleBlob() []byte {
	return append([]byte(oleparse.OLE_SIGNATURE), make([]byte, 512)...)
}

func TestMacro_BenignDocument(t *testing.T) {
	a := buildArtifact(t, benignParts())
	fs, err := (&Macro{}).Run(context.Background(), a)
	require.NoError(t, err)
	assert.Empty(t, fs)
}

func TestMacro_VBAProjectContainer(t *testing.T) {
	parts := append(benignParts(), docxPart{"word/vbaProject.bin", oleBlob()})
	a := buildArtifact(t, parts)

	fs, err := (&Macro{}).Run(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "macro_present", fs[0].Code)
	assert.Equal(t, types.SevCritical, fs[0].Severity)
	assert.Equal(t, "word/vbaProject.bin", fs[0].Part)
}

func TestMacro_UnreadableOLEIsSuspicious(t *testing.T) {
	// OLE magic with a truncated header under an innocuous name:
	// detection keys on the signature, never on the part name.
	junk := append([]byte(oleparse.OLE_SIGNATURE), []byte("not a compound file")...)
	parts := append(benignParts(), docxPart{"word/media/texture1.bin", junk})
	a := buildArtifact(t, parts)

	fs, err := (&Macro{}).Run(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "ole_unreadable", fs[0].Code)
	assert.Equal(t, types.SevMedium, fs[0].Severity)
	assert.Equal(t, "word/media/texture1.bin", fs[0].Part)
}

func TestMacro_MisnamedMacroStorage(t *testing.T) {
	// A vbaProject part that is not even an OLE compound file is a
	// container-confusion signal, not a clean pass.
	parts := append(benignParts(), docxPart{"word/vbaProject.bin", []byte("PK\x03\x04 definitely not ole padding padding")})
	a := buildArtifact(t, parts)

	fs, err := (&Macro{}).Run(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "ole_unreadable", fs[0].Code)
}
