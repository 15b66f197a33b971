package detect

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-paies/fiscal-updater/internal/model"
)

type mapBaseline struct {
	values map[string]float64
	failOn string
}

func (m *mapBaseline) Get(key string) (float64, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *mapBaseline) Set(key string, v float64) error {
	if key == m.failOn {
		return eris.New("boom")
	}
	m.values[key] = v
	return nil
}

var bnc = model.Field{
	Key:       "cotisations_sociales.bnc.normal",
	Label:     "BNC",
	Category:  "cotisation",
	Unit:      model.UnitRate,
	Tolerance: 0.001,
}

func TestDetect_WithinTolerance(t *testing.T) {
	b := &mapBaseline{values: map[string]float64{bnc.Key: 0.212}}
	d := New(b)

	c, changed := d.Detect(bnc, 0.2125, nil, "https://example.test")
	assert.False(t, changed)
	assert.Nil(t, c)
	assert.Empty(t, d.Changes())
	assert.InDelta(t, 0.212, b.values[bnc.Key], 0)
}

func TestDetect_RecordsChange(t *testing.T) {
	b := &mapBaseline{values: map[string]float64{bnc.Key: 0.212}}
	d := New(b)

	c, changed := d.Detect(bnc, 0.25, nil, "https://example.test")
	require.True(t, changed)
	require.NotNil(t, c)
	assert.Equal(t, "21.2%", c.Old)
	assert.Equal(t, "25.0%", c.New)
	assert.Equal(t, "cotisation", c.Category)
	assert.Equal(t, "BNC", c.Field)
	assert.Equal(t, "https://example.test", c.Source)
	assert.InDelta(t, 0.25, b.values[bnc.Key], 0)
	assert.Len(t, d.Changes(), 1)
}

func TestDetect_UpdatesDerived(t *testing.T) {
	b := &mapBaseline{values: map[string]float64{bnc.Key: 0.212, "cotisations_sociales.bnc.acre": 0.106}}
	d := New(b)

	_, changed := d.Detect(bnc, 0.246, map[string]float64{"cotisations_sociales.bnc.acre": 0.123}, "src")
	require.True(t, changed)
	assert.InDelta(t, 0.246, b.values[bnc.Key], 0)
	assert.InDelta(t, 0.123, b.values["cotisations_sociales.bnc.acre"], 1e-12)
}

func TestDetect_DerivedUntouchedWithoutChange(t *testing.T) {
	b := &mapBaseline{values: map[string]float64{bnc.Key: 0.246, "cotisations_sociales.bnc.acre": 0.1}}
	d := New(b)

	_, changed := d.Detect(bnc, 0.246, map[string]float64{"cotisations_sociales.bnc.acre": 0.123}, "src")
	assert.False(t, changed)
	assert.InDelta(t, 0.1, b.values["cotisations_sociales.bnc.acre"], 0)
}

func TestDetect_FirstRun(t *testing.T) {
	b := &mapBaseline{values: map[string]float64{}}
	d := New(b)

	c, changed := d.Detect(bnc, 0.246, nil, "src")
	require.True(t, changed)
	assert.Equal(t, "0.0%", c.Old)
	assert.Equal(t, "24.6%", c.New)
}

func TestDetect_ExactAmounts(t *testing.T) {
	vente := model.Field{Key: "plafonds_micro.vente_marchandises", Label: "Plafond vente", Category: "plafond", Unit: model.UnitAmount}
	b := &mapBaseline{values: map[string]float64{vente.Key: 188700}}
	d := New(b)

	_, changed := d.Detect(vente, 188700, nil, "src")
	assert.False(t, changed)

	c, changed := d.Detect(vente, 203100, nil, "src")
	require.True(t, changed)
	assert.Equal(t, "188 700 €", c.Old)
	assert.Equal(t, "203 100 €", c.New)
}

func TestDetect_StoreFailureStillRecords(t *testing.T) {
	b := &mapBaseline{values: map[string]float64{}, failOn: bnc.Key}
	d := New(b)

	_, changed := d.Detect(bnc, 0.246, nil, "src")
	assert.True(t, changed)
	assert.Len(t, d.Changes(), 1)
}

func TestChangesReturnsCopy(t *testing.T) {
	d := New(&mapBaseline{values: map[string]float64{}})
	d.Detect(bnc, 0.246, nil, "src")

	got := d.Changes()
	got[0].Field = "mutated"
	assert.Equal(t, "BNC", d.Changes()[0].Field)
}
