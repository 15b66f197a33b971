package updater

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-paies/fiscal-updater/internal/baseline"
	"github.com/nexus-paies/fiscal-updater/internal/config"
	"github.com/nexus-paies/fiscal-updater/internal/fields"
)

func testValues(t *testing.T, raw string) *baseline.Store {
	t.Helper()
	s, err := baseline.New("data.json", []byte(raw))
	require.NoError(t, err)
	return s
}

func TestPatchDocuments_MissingDocumentSkipped(t *testing.T) {
	docs := []config.DocumentConfig{{Path: filepath.Join(t.TempDir(), "absent.html")}}
	res, err := PatchDocuments(docs, 2025, testValues(t, startBaseline), Options{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[0].Missing)
	assert.False(t, res[0].Changed)
}

func TestPatchDocuments_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulateur.html")
	require.NoError(t, os.WriteFile(path, []byte(startDocument), 0o600))
	values := testValues(t, `{"cotisations_sociales": {"bnc": {"normal": 0.25, "acre": 0.125}}}`)
	docs := []config.DocumentConfig{{Path: path}}

	res, err := PatchDocuments(docs, 2025, values, Options{})
	require.NoError(t, err)
	assert.True(t, res[0].Changed)
	first := readFile(t, path)
	assert.Contains(t, first, `'bnc': { normal: 0.25, acre: 0.125, label: 'BNC' },`)

	res, err = PatchDocuments(docs, 2025, values, Options{})
	require.NoError(t, err)
	assert.False(t, res[0].Changed)
	assert.Equal(t, first, readFile(t, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestPatchDocuments_RuleSelection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulateur.html")
	require.NoError(t, os.WriteFile(path, []byte(startDocument), 0o644))
	values := testValues(t, `{"cotisations_sociales": {"bnc": {"normal": 0.25, "acre": 0.125}}}`)

	docs := []config.DocumentConfig{{Path: path, Rules: []string{fields.SetSMIC, "inconnu"}}}
	res, err := PatchDocuments(docs, 2025, values, Options{})
	require.NoError(t, err)
	assert.False(t, res[0].Changed)
	assert.Equal(t, startDocument, readFile(t, path))
}

func TestLineDiff(t *testing.T) {
	before := "a\nconst PMSS = 3864;\nc\n"
	after := "a\nconst PMSS = 3925;\nc\n"
	assert.Equal(t,
		"--- doc.html\n+++ doc.html\n-const PMSS = 3864;\n+const PMSS = 3925;\n",
		LineDiff("doc.html", before, after),
	)
	assert.Equal(t, "--- doc.html\n+++ doc.html\n", LineDiff("doc.html", before, before))
}
