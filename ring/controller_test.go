package ring

import "testing"

// TestControllerUpAdjustWithSlew reproduces the worked example: 2000
// inserts against a currentSize of 1000 over a 10-minute window with a
// 15-minute residency target push the observed mean residency to 5
// minutes, tripping the 20% deadband; the uncapped desired size of
// 3000 is clamped by the 25% up-slew to 1250.
func TestControllerUpAdjustWithSlew(t *testing.T) {
	cfg := testConfig()
	cfg.InitialSize = 1000
	cfg.AutoResize = true
	cfg.DesiredEjectMins = 15
	cfg.MonitorPeriodMins = 10
	cfg.TriggerAdjustPercent = 20
	cfg.MaxAdjustPercentUp = 25
	cfg.MaxAdjustPercentDown = 10
	cfg.AutoMinSize = 100

	r := newTestRing(t, cfg, &captureSink{})

	c := newController(r, cfg)
	r.setInt64(nsStats, keyItemCount, 2000)
	r.setInt64(nsStats, keyCurrentSize, 1000)

	c.decide()

	got := r.getInt64(nsStats, keyCurrentSize, -1)
	if got != 1250 {
		t.Fatalf("expected currentSize to move to 1250, got %d", got)
	}
}

func TestControllerNoOpWithinDeadband(t *testing.T) {
	cfg := testConfig()
	cfg.InitialSize = 1000
	cfg.DesiredEjectMins = 15
	cfg.MonitorPeriodMins = 10
	cfg.TriggerAdjustPercent = 20

	r := newTestRing(t, cfg, &captureSink{})
	c := newController(r, cfg)

	// avgEjectMins = (1000/650)*10 ~= 15.4, within 20% of 15.
	r.setInt64(nsStats, keyItemCount, 650)
	r.setInt64(nsStats, keyCurrentSize, 1000)

	c.decide()

	if got := r.getInt64(nsStats, keyCurrentSize, -1); got != 1000 {
		t.Fatalf("expected no resize inside the deadband, got %d", got)
	}
}

func TestControllerRespectsAbsoluteBounds(t *testing.T) {
	cfg := testConfig()
	cfg.InitialSize = 1000
	cfg.AutoResize = true
	cfg.DesiredEjectMins = 15
	cfg.MonitorPeriodMins = 10
	cfg.TriggerAdjustPercent = 20
	cfg.MaxAdjustPercentUp = 1000 // effectively unlimited slew for this test
	cfg.AutoMinSize = 100
	cfg.AutoMaxSize = 1100

	r := newTestRing(t, cfg, &captureSink{})
	c := newController(r, cfg)

	r.setInt64(nsStats, keyItemCount, 2000)
	r.setInt64(nsStats, keyCurrentSize, 1000)

	c.decide()

	if got := r.getInt64(nsStats, keyCurrentSize, -1); got != 1100 {
		t.Fatalf("expected clamp to autoMaxSize=1100, got %d", got)
	}
}

func TestControllerReinitializeResetsWindow(t *testing.T) {
	r := newTestRing(t, testConfig(), &captureSink{})
	cfg := testConfig()
	c := newController(r, cfg)

	r.setInt64(nsStats, keyItemCount, 42)
	_, _ = r.store.Add(nsStats, keyLocked, "1")

	c.reinitialize()

	if got := r.getInt64(nsStats, keyItemCount, -1); got != 0 {
		t.Fatalf("expected itemCount reset to 0, got %d", got)
	}
	if _, ok, _ := r.store.Get(nsStats, keyLocked); ok {
		t.Fatalf("expected locked key to be cleared")
	}
}
