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

type write struct {
	path  string
	value string
}

type recordingWriter struct {
	writes []write
	fail   map[string]error
}

func (w *recordingWriter) WriteFile(path, value string) error {
	w.writes = append(w.writes, write{path, value})
	if err, ok := w.fail[path]; ok {
		return err
	}
	return nil
}

func testCatalog() *models.Catalog {
	return &models.Catalog{
		Thresholds: models.Thresholds{Low: 1, High: 2},
		Hardware: map[models.KnobKind]models.HardwareKnob{
			models.KnobCPUGovernor:         {Path: "/gov", Modes: []string{"performance", "powersave"}},
			models.KnobACPIPlatformProfile: {Path: "/acpi"},
			models.KnobASPM:                {Path: "/aspm"},
		},
		Profiles: map[string]models.ProfileSetting{
			"performance": {
				models.KnobCPUGovernor:         "performance",
				models.KnobACPIPlatformProfile: "performance",
				models.KnobASPM:                "performance",
			},
			"balanced": {
				models.KnobCPUGovernor:         "powersave",
				models.KnobACPIPlatformProfile: "balanced",
				models.KnobASPM:                "DISABLED",
			},
			"powersave": {
				models.KnobCPUGovernor:         "powersave",
				models.KnobACPIPlatformProfile: "low-power",
				models.KnobASPM:                "powersupersave",
			},
			"turbo": {
				models.KnobCPUGovernor: "schedutil",
				models.KnobASPM:        "performance",
			},
			"epp": {
				models.KnobEPP: "power",
			},
		},
	}
}

func TestActuator_AppliesInKnobOrder(t *testing.T) {
	w := &recordingWriter{}
	a := NewActuator(w, logger.Nop())

	attempted, err := a.Apply("performance", testCatalog())
	require.NoError(t, err)
	assert.True(t, attempted)
	assert.Equal(t, "performance", a.Current())
	assert.Equal(t, []write{
		{"/gov", "performance"},
		{"/acpi", "performance"},
		{"/aspm", "performance"},
	}, w.writes)
}

func TestActuator_SecondApplyIsNoop(t *testing.T) {
	w := &recordingWriter{}
	a := NewActuator(w, logger.Nop())
	cat := testCatalog()

	_, err := a.Apply("balanced", cat)
	require.NoError(t, err)
	n := len(w.writes)

	attempted, err := a.Apply("balanced", cat)
	require.NoError(t, err)
	assert.False(t, attempted)
	assert.Len(t, w.writes, n, "second apply must not write")
}

func TestActuator_InvalidateForcesRewrite(t *testing.T) {
	w := &recordingWriter{}
	a := NewActuator(w, logger.Nop())
	cat := testCatalog()

	_, _ = a.Apply("powersave", cat)
	a.Invalidate()
	attempted, err := a.Apply("powersave", cat)
	require.NoError(t, err)
	assert.True(t, attempted)
	assert.Len(t, w.writes, 6)

	attempted, _ = a.Apply("powersave", cat)
	assert.False(t, attempted, "stale flag must clear after one apply")
}

func TestActuator_DisabledKnobNeverWritten(t *testing.T) {
	w := &recordingWriter{}
	a := NewActuator(w, logger.Nop())

	_, err := a.Apply("balanced", testCatalog())
	require.NoError(t, err)
	for _, wr := range w.writes {
		assert.NotEqual(t, "/aspm", wr.path)
	}
	assert.Len(t, w.writes, 2)
}

func TestActuator_UnknownProfileKeepsCurrent(t *testing.T) {
	w := &recordingWriter{}
	a := NewActuator(w, logger.Nop())
	cat := testCatalog()
	_, _ = a.Apply("balanced", cat)
	before := len(w.writes)

	attempted, err := a.Apply("missing", cat)
	assert.False(t, attempted)
	assert.ErrorIs(t, err, ErrUnknownProfile)
	assert.Equal(t, "balanced", a.Current())
	assert.Len(t, w.writes, before)
}

func TestActuator_PartialFailureStillRecordsProfile(t *testing.T) {
	w := &recordingWriter{fail: map[string]error{"/acpi": errors.New("EIO")}}
	a := NewActuator(w, logger.Nop())

	attempted, err := a.Apply("performance", testCatalog())
	assert.True(t, attempted)

	var ae *ApplyError
	require.ErrorAs(t, err, &ae)
	require.Len(t, ae.Knobs, 1)
	assert.Equal(t, models.KnobACPIPlatformProfile, ae.Knobs[0].Knob)

	assert.Len(t, w.writes, 3, "remaining knobs are still attempted")
	assert.Equal(t, "performance", a.Current())
}

func TestActuator_IllegalValueAndMissingKnob(t *testing.T) {
	w := &recordingWriter{}
	a := NewActuator(w, logger.Nop())

	_, err := a.Apply("turbo", testCatalog())
	var ae *ApplyError
	require.ErrorAs(t, err, &ae)
	require.Len(t, ae.Knobs, 1)
	assert.ErrorIs(t, ae.Knobs[0], ErrIllegalValue)
	assert.Equal(t, []write{{"/aspm", "performance"}}, w.writes)

	_, err = a.Apply("epp", testCatalog())
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, ae.Knobs[0], ErrKnobNotConfigured)
}

func TestActuator_GovernorFanOutOnDisk(t *testing.T) {
	root := t.TempDir()
	cpufreq := filepath.Join(root, "cpufreq")
	for _, p := range []string{"policy0", "policy1", "policy2", "policy10"} {
		require.NoError(t, os.MkdirAll(filepath.Join(cpufreq, p), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(cpufreq, p, "scaling_governor"), []byte("schedutil\n"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(cpufreq, "ondemand"), 0o755))

	cat := &models.Catalog{
		Hardware: map[models.KnobKind]models.HardwareKnob{
			models.KnobCPUGovernor: {Path: filepath.Join(cpufreq, "policy0", "scaling_governor")},
		},
		Profiles: map[string]models.ProfileSetting{
			"powersave": {models.KnobCPUGovernor: "powersave"},
		},
	}

	a := NewActuator(SysfsWriter{}, logger.Nop())
	_, err := a.Apply("powersave", cat)
	require.NoError(t, err)

	for _, p := range []string{"policy0", "policy1", "policy2", "policy10"} {
		b, err := os.ReadFile(filepath.Join(cpufreq, p, "scaling_governor"))
		require.NoError(t, err)
		assert.Equal(t, "powersave\n", string(b), p)
	}
}
