package hardware

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSampler(t *testing.T) {
	proc := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(proc, "loadavg"), []byte("0.52 0.41 0.30 2/812 12345\n"), 0o644))

	s, err := NewLoadSampler(proc)
	require.NoError(t, err)
	l, err := s.Load1()
	require.NoError(t, err)
	assert.InDelta(t, 0.52, l, 1e-9)
}

func TestLoadSampler_MissingFile(t *testing.T) {
	s, err := NewLoadSampler(t.TempDir())
	require.NoError(t, err)
	_, err = s.Load1()
	assert.Error(t, err)
}

func writeSupply(t *testing.T, sys, name string, attrs map[string]string) {
	t.Helper()
	dir := filepath.Join(sys, "class", "power_supply", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for k, v := range attrs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, k), []byte(v+"\n"), 0o644))
	}
}

func TestSupplyProbe(t *testing.T) {
	cases := []struct {
		name     string
		supplies map[string]map[string]string
		want     models.PowerSource
	}{
		{
			name: "adapter online",
			supplies: map[string]map[string]string{
				"AC":   {"type": "Mains", "online": "1"},
				"BAT0": {"type": "Battery", "status": "Charging"},
			},
			want: models.PowerSourceAC,
		},
		{
			name: "adapter offline",
			supplies: map[string]map[string]string{
				"AC":   {"type": "Mains", "online": "0"},
				"BAT0": {"type": "Battery", "status": "Unknown"},
			},
			want: models.PowerSourceBattery,
		},
		{
			name: "no adapter, discharging",
			supplies: map[string]map[string]string{
				"BAT0": {"type": "Battery", "status": "Discharging"},
			},
			want: models.PowerSourceBattery,
		},
		{
			name: "peripheral battery ignored",
			supplies: map[string]map[string]string{
				"hidpp_battery_0": {"type": "Battery", "status": "Discharging", "scope": "Device"},
			},
			want: models.PowerSourceAC,
		},
		{
			name:     "desktop without supplies",
			supplies: map[string]map[string]string{},
			want:     models.PowerSourceAC,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sys := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(sys, "class", "power_supply"), 0o755))
			for name, attrs := range tc.supplies {
				writeSupply(t, sys, name, attrs)
			}
			p, err := NewSupplyProbe(sys)
			require.NoError(t, err)
			got, err := p.PowerSource()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFeatureApplier(t *testing.T) {
	features := models.RootFeatures{
		DisclaimerAccepted: true,
		Items: []models.RootFeature{
			{Enabled: true, Path: "/a", ACValue: "0", BatteryValue: "1"},
			{Enabled: false, Path: "/b", ACValue: "0", BatteryValue: "1"},
			{Enabled: true, Path: "/c", ACValue: "max_performance", BatteryValue: "med_power_with_dipm"},
			{Enabled: true, Path: "/d", ACValue: "on"},
		},
	}

	w := &recordingWriter{fail: map[string]error{"/a": errors.New("EACCES")}}
	f := NewFeatureApplier(w, logger.Nop())

	err := f.Apply(features, models.PowerSourceBattery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/a")
	assert.Equal(t, []write{{"/a", "1"}, {"/c", "med_power_with_dipm"}}, w.writes)

	w.writes, w.fail = nil, nil
	require.NoError(t, f.Apply(features, models.PowerSourceAC))
	assert.Equal(t, []write{{"/a", "0"}, {"/c", "max_performance"}, {"/d", "on"}}, w.writes)
}

func TestFeatureApplier_DisclaimerGate(t *testing.T) {
	w := &recordingWriter{}
	f := NewFeatureApplier(w, logger.Nop())

	err := f.Apply(models.RootFeatures{Items: []models.RootFeature{{Enabled: true, Path: "/a", ACValue: "1"}}}, models.PowerSourceAC)
	assert.ErrorIs(t, err, ErrDisclaimerNotAccepted)
	assert.Empty(t, w.writes)

	assert.NoError(t, f.Apply(models.RootFeatures{}, models.PowerSourceAC))
}
