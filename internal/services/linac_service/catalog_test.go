package linac_service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
sequences:
  - name: Output
    type: QA
    beams:
      - filename: fields/Beam_AP.efs
        repeats: 3
        mu: 50
  - name: Beam Flatness
    type: QA
    beams:
      - name: Open
        filename: /data/Beam_Open.efs
        ptid: 1QASNC
  - name: Imaging
    type: Daily
    beams:
      - filename: Beam_Img.efs
`

func TestParseCatalog(t *testing.T) {
	seqs, err := parseCatalog([]byte(catalogYAML), "/srv/seq")
	require.NoError(t, err)
	require.Len(t, seqs, 3)

	assert.Equal(t, "Beam Flatness", seqs[0].Name)
	assert.Equal(t, "Imaging", seqs[1].Name)
	assert.Equal(t, "Output", seqs[2].Name)

	out := seqs[2].Beams[0]
	assert.Equal(t, "/srv/seq/fields/Beam_AP.efs", out.Filename)
	assert.Equal(t, "Beam_AP", out.Name)
	assert.Equal(t, 3, out.Repeats)
	require.NotNil(t, out.MU)
	assert.Equal(t, 50.0, *out.MU)

	open := seqs[0].Beams[0]
	assert.Equal(t, "/data/Beam_Open.efs", open.Filename)
	assert.Equal(t, 1, open.Repeats)
	require.NotNil(t, open.PatientID)
	assert.Equal(t, "1QASNC", *open.PatientID)
}

func TestParseCatalogRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no name":     "sequences:\n  - beams:\n      - filename: a.efs\n",
		"no beams":    "sequences:\n  - name: A\n",
		"no filename": "sequences:\n  - name: A\n    beams:\n      - name: x\n",
		"duplicate":   "sequences:\n  - name: A\n    beams: [{filename: a.efs}]\n  - name: A\n    beams: [{filename: b.efs}]\n",
		"broken yaml": "sequences: [",
		"wrong shape": "sequences: 5\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseCatalog([]byte(data), "/")
			assert.Error(t, err)
		})
	}
}

func TestCatalogGroupsByType(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	require.NoError(t, os.WriteFile(cfg.SequencesFile, []byte(catalogYAML), 0o644))

	c, err := NewCatalog(cfg, testLogger())
	require.NoError(t, err)
	defer c.Close()

	groups := c.Sequences()
	require.Len(t, groups, 2)
	assert.Equal(t, "Daily", groups[0].Type)
	assert.Equal(t, "QA", groups[1].Type)
	require.Len(t, groups[1].Sequences, 2)
	assert.Equal(t, "Beam Flatness", groups[1].Sequences[0].Name)

	seq, ok := c.Sequence("Output")
	require.True(t, ok)
	fields := SequenceFields(seq)
	require.Len(t, fields, 3)
	for _, f := range fields {
		assert.Equal(t, "Beam_AP", f.Name)
		assert.Equal(t, filepath.Join(dir, "fields", "Beam_AP.efs"), f.Filename)
		require.NotNil(t, f.Overrides.MU)
	}

	_, ok = c.Sequence("Missing")
	assert.False(t, ok)
}

func TestCatalogMissingFileIsEmpty(t *testing.T) {
	c, err := NewCatalog(testConfig(t.TempDir()), testLogger())
	require.NoError(t, err)
	defer c.Close()
	assert.Empty(t, c.Sequences())
}

func TestCatalogInvalidFileFailsStart(t *testing.T) {
	cfg := testConfig(t.TempDir())
	require.NoError(t, os.WriteFile(cfg.SequencesFile, []byte("sequences: ["), 0o644))
	_, err := NewCatalog(cfg, testLogger())
	assert.Error(t, err)
}

func TestCatalogReloadsOnChange(t *testing.T) {
	cfg := testConfig(t.TempDir())
	c, err := NewCatalog(cfg, testLogger())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, os.WriteFile(cfg.SequencesFile, []byte(catalogYAML), 0o644))
	require.Eventually(t, func() bool {
		_, ok := c.Sequence("Imaging")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	// Ошибка разбора оставляет прежний каталог.
	require.NoError(t, os.WriteFile(cfg.SequencesFile, []byte("sequences: ["), 0o644))
	time.Sleep(3 * reloadDelay)
	_, ok := c.Sequence("Imaging")
	assert.True(t, ok)
}
