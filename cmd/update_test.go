package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-paies/fiscal-updater/internal/config"
	"github.com/nexus-paies/fiscal-updater/internal/fields"
	"github.com/nexus-paies/fiscal-updater/internal/model"
	"github.com/nexus-paies/fiscal-updater/internal/updater"
)

const pmssURL = "https://urssaf.test/pmss"

type staticFetcher map[string]string

func (f staticFetcher) Fetch(_ context.Context, url string) (string, error) {
	if p, ok := f[url]; ok {
		return p, nil
	}
	return "", errors.New("fetch: unexpected status 503 from " + url)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{
		Fiscal:    config.FiscalConfig{Year: 2025},
		Paths:     config.PathsConfig{Baseline: filepath.Join(dir, "data.json"), Report: filepath.Join(dir, "rapport_maj.md")},
		Sources:   map[string][]string{fields.RoutinePMSS: {pmssURL}},
		Bounds:    config.DefaultBounds,
		Documents: []config.DocumentConfig{{Path: filepath.Join(dir, "simulateur-fiscal.html"), Rules: []string{fields.SetPMSS}}},
	}
	require.NoError(t, os.WriteFile(c.Paths.Baseline, []byte(`{"plafond_securite_sociale": {"mensuel": 3864, "annuel": 46368}}`), 0o644))
	require.NoError(t, os.WriteFile(c.Documents[0].Path, []byte("const PMSS = 3864;\nconst PASS = 46368;\n"), 0o644))
	return c
}

func TestRunUpdate_Success(t *testing.T) {
	c := testConfig(t)
	u := updater.New(c, staticFetcher{pmssURL: "Plafond mensuel de la sécurité sociale : 3 925 € au 1er janvier"}, nil, nil)

	var out bytes.Buffer
	err := runUpdate(context.Background(), u, updater.Options{Only: []string{fields.RoutinePMSS}}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✅ 1 modification(s)")
	assert.Contains(t, out.String(), "document mis à jour : "+c.Documents[0].Path)

	doc, err := os.ReadFile(c.Documents[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "const PMSS = 3925;\nconst PASS = 47100;\n", string(doc))
}

func TestRunUpdate_ErrorsFailTheRun(t *testing.T) {
	c := testConfig(t)
	u := updater.New(c, staticFetcher{}, nil, nil)

	var out bytes.Buffer
	err := runUpdate(context.Background(), u, updater.Options{Only: []string{fields.RoutinePMSS}}, &out)
	require.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, out.String(), "❌ 2 erreur(s)")
}

func TestRunUpdate_HistoryUnavailable(t *testing.T) {
	c := testConfig(t)
	c.History = config.HistoryConfig{Driver: "mysql", DatabaseURL: "mysql://nowhere"}

	hist := runHistory(context.Background(), c.History)
	assert.Nil(t, hist)

	u := updater.New(c, staticFetcher{pmssURL: "Plafond mensuel de la sécurité sociale : 3 925 € au 1er janvier"}, hist, nil)
	var out bytes.Buffer
	require.NoError(t, runUpdate(context.Background(), u, updater.Options{Only: []string{fields.RoutinePMSS}}, &out))
	assert.Contains(t, out.String(), "✅ 1 modification(s)")

	doc, err := os.ReadFile(c.Documents[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "const PMSS = 3925;\nconst PASS = 47100;\n", string(doc))
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, &model.RunSummary{Rejected: 1})
	assert.Contains(t, out.String(), "✅ Données à jour\n")
	assert.Contains(t, out.String(), "1 valeur(s) rejetée(s)\n")
}

func TestRunPatch(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, os.WriteFile(c.Paths.Baseline, []byte(`{"plafond_securite_sociale": {"mensuel": 3925, "annuel": 47100}}`), 0o644))

	var out bytes.Buffer
	require.NoError(t, runPatch(c, true, &out))
	assert.Contains(t, out.String(), "-const PMSS = 3864;\n")
	assert.Contains(t, out.String(), "+const PMSS = 3925;\n")
	assert.Contains(t, out.String(), "2 site(s) à modifier")
	doc, err := os.ReadFile(c.Documents[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "const PMSS = 3864;\nconst PASS = 46368;\n", string(doc))

	out.Reset()
	require.NoError(t, runPatch(c, false, &out))
	assert.Contains(t, out.String(), "mis à jour (2 site(s))")
	doc, err = os.ReadFile(c.Documents[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "const PMSS = 3925;\nconst PASS = 47100;\n", string(doc))

	out.Reset()
	require.NoError(t, runPatch(c, false, &out))
	assert.Contains(t, out.String(), ": à jour\n")
}

func TestRunPatch_MissingDocument(t *testing.T) {
	c := testConfig(t)
	c.Documents = []config.DocumentConfig{{Path: filepath.Join(t.TempDir(), "absent.html")}}

	var out bytes.Buffer
	require.NoError(t, runPatch(c, false, &out))
	assert.Contains(t, out.String(), "absent.html: introuvable")
}
