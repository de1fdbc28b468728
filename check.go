package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go_chassis/motor"
)

// checkOptions drive the wheel smoke test.
type checkOptions struct {
	Current  int16
	Duration time.Duration
	Timeout  time.Duration
}

// releaseTimeout bounds the final zero frame, which is sent even after ctx is done.
const releaseTimeout = 100 * time.Millisecond

// runCheck pushes current through each wheel in turn and reports whether its
// feedback answers and turns the right way. The driver must be running, and its
// bus must stay open until runCheck returns so the release frame goes out.
func runCheck(ctx context.Context, d *motor.Driver, opts checkOptions, w io.Writer) (passed, failed int) {
	pass := func(name string) {
		passed++
		fmt.Fprintf(w, "  [PASS] %s\n", name)
	}
	fail := func(name string, err interface{}) {
		failed++
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", name, err)
	}

	fmt.Fprintln(w, "=== Wheel Check ===")
	fmt.Fprintf(w, "Current: %d, Duration: %v\n\n", opts.Current, opts.Duration)

	// always release the wheels, also when ctx was cancelled mid-drive
	defer func() {
		rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := d.SendCurrents(rctx, [motor.NumMotors]int16{}); err != nil {
			fail("Release", err)
		}
		fmt.Fprintf(w, "\n=== Results: %d passed, %d failed ===\n", passed, failed)
	}()

	// --- Test 1: every controller answers a zero command ---
	fmt.Fprintln(w, "[Test 1] Feedback from all wheels")
	_, before, _ := d.Stats()
	if err := d.SendCurrents(ctx, [motor.NumMotors]int16{}); err != nil {
		fail("Send zero currents", err)
		return
	}
	if waitFor(ctx, opts.Timeout, func() bool {
		_, received, _ := d.Stats()
		return received >= before+motor.NumMotors
	}) {
		pass("Feedback received")
	} else {
		fail("Feedback received", "timeout")
	}

	// --- Test 2: each wheel turns with the sign of its current ---
	for i := 0; i < motor.NumMotors; i++ {
		name := fmt.Sprintf("Wheel %d direction", i)
		fmt.Fprintf(w, "[Test %d] %s\n", i+2, name)

		var currents [motor.NumMotors]int16
		currents[i] = opts.Current
		if err := drive(ctx, d, currents, opts.Duration); err != nil {
			fail(name, err)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		speed := d.Motor(i).Speed()
		fmt.Fprintf(w, "    Speed feedback: %.0f rpm\n", speed)
		if (opts.Current > 0 && speed > 0) || (opts.Current < 0 && speed < 0) {
			pass(name)
		} else {
			fail(name, fmt.Sprintf("speed %.0f rpm for current %d", speed, opts.Current))
		}
	}
	return passed, failed
}

// drive repeats a command frame for dur, as the ESCs stop on a silent bus.
func drive(ctx context.Context, d *motor.Driver, currents [motor.NumMotors]int16, dur time.Duration) error {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(dur)

	for {
		if err := d.SendCurrents(ctx, currents); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case <-ticker.C:
		}
	}
}

func waitFor(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	expired := time.After(timeout)

	for !cond() {
		select {
		case <-ctx.Done():
			return false
		case <-expired:
			return false
		case <-ticker.C:
		}
	}
	return true
}
