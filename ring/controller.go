package ring

import (
	"context"
	"math"
	"strconv"
	"time"
)

// controller is the Capacity Controller (spec.md §4.6): it samples
// insert rate over a monitoring window and, on window close, decides
// whether to resize the ring, clamped by asymmetric slew limits and
// absolute bounds.
type controller struct {
	r *Ring

	desiredEjectMins     float64
	monitorPeriodMins    float64
	triggerAdjustPercent float64
	maxAdjustPercentUp   float64
	maxAdjustPercentDown float64
	autoMinSize          int64
	autoMaxSize          int64
}

func newController(r *Ring, cfg Config) *controller {
	return &controller{
		r:                    r,
		desiredEjectMins:     cfg.DesiredEjectMins,
		monitorPeriodMins:    cfg.MonitorPeriodMins,
		triggerAdjustPercent: cfg.TriggerAdjustPercent,
		maxAdjustPercentUp:   cfg.MaxAdjustPercentUp,
		maxAdjustPercentDown: cfg.MaxAdjustPercentDown,
		autoMinSize:          cfg.AutoMinSize,
		autoMaxSize:          cfg.AutoMaxSize,
	}
}

// onInsert is called once per new-id insertion. It advances the
// Collecting state and, once the window has elapsed, attempts to
// transition to Evaluating.
func (c *controller) onInsert() {
	c.r.incr(nsStats, keyItemCount, 1)

	periodStart := c.r.getInt64(nsStats, keyPeriodStart, time.Now().Unix())
	elapsed := time.Now().Unix() - periodStart
	if float64(elapsed) <= c.monitorPeriodMins*60 {
		return
	}

	// Evaluating: only the first caller to win the first-writer-wins
	// "locked" mutex proceeds; everyone else falls through uncounted.
	won, err := c.r.store.Add(nsStats, keyLocked, "1")
	if err != nil {
		c.r.log.Errorf("controller: lock acquisition failed: %v", err)
		return
	}
	if !won {
		return
	}

	c.decide()
	c.reinitialize()
}

// decide computes the observed mean residency for the window that just
// closed and, if it strays outside the deadband, resizes the ring.
func (c *controller) decide() {
	count := c.r.getInt64(nsStats, keyItemCount, 0)
	if count <= 0 {
		return // zero samples: skip silently, try again next period
	}

	currentSize := c.r.getInt64(nsStats, keyCurrentSize, 0)
	if currentSize <= 0 {
		return
	}

	avgEjectMins := (float64(currentSize) / float64(count)) * c.monitorPeriodMins
	c.r.setFloat64(nsStats, keyLastPeriodAvgMins, avgEjectMins)

	if c.desiredEjectMins == 0 {
		return
	}
	deviationPercent := math.Abs(1-avgEjectMins/c.desiredEjectMins) * 100
	if deviationPercent <= c.triggerAdjustPercent {
		return
	}

	desiredSize := (float64(count) / c.monitorPeriodMins) * c.desiredEjectMins
	diffPct := (desiredSize - float64(currentSize)) / float64(currentSize)

	slew := c.maxAdjustPercentUp
	if diffPct < 0 {
		slew = c.maxAdjustPercentDown
	}

	var newSize float64
	if math.Abs(diffPct)*100 > slew {
		delta := math.Floor(float64(currentSize) * slew / 100)
		if diffPct >= 0 {
			newSize = float64(currentSize) + delta
		} else {
			newSize = float64(currentSize) - delta
		}
	} else {
		newSize = desiredSize
	}

	clamped := clamp(int64(newSize), c.autoMinSize, c.autoMaxSize)
	if clamped == currentSize {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.r.Resize(ctx, clamped); err != nil {
		c.r.log.Errorf("controller: resize to %d failed: %v", clamped, err)
	} else {
		c.r.log.Infof("controller: resized ring %d -> %d (avgEjectMins=%.2f, target=%.2f)", currentSize, clamped, avgEjectMins, c.desiredEjectMins)
	}
}

// reinitialize returns the controller to Collecting: reset itemCount,
// start a fresh window, and release the lock.
func (c *controller) reinitialize() {
	c.r.setInt64(nsStats, keyItemCount, 0)
	c.r.setString(nsStats, keyPeriodStart, strconv.FormatInt(time.Now().Unix(), 10))
	c.r.deleteKey(nsStats, keyLocked)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
