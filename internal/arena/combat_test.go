package arena

import (
	"testing"
)

func TestDamage(t *testing.T) {
	cases := []struct {
		atk        int
		multiplier float64
		want       int
	}{
		{10, 0.0, 1},
		{10, 1.0, 10},
		{7, 0.5, 3},
		{10, 0.05, 1},
		{8, 0.5, 4},
		{1, 1.0, 1},
		{10, -0.5, 1},
		{10, 1.5, 10},
	}
	for _, c := range cases {
		if got := Damage(c.atk, c.multiplier); got != c.want {
			t.Errorf("Damage(%d, %v) = %d, want %d", c.atk, c.multiplier, got, c.want)
		}
	}
}

func TestApplyDamage(t *testing.T) {
	if got := ApplyDamage(100, 10); got != 90 {
		t.Errorf("Expected 90, got %d", got)
	}
	if got := ApplyDamage(5, 10); got != 0 {
		t.Errorf("Expected clamp at 0, got %d", got)
	}
	if got := ApplyDamage(10, 10); got != 0 {
		t.Errorf("Expected exactly 0, got %d", got)
	}
}

func TestChargeMeter_Oscillation(t *testing.T) {
	meter := NewChargeMeter(0.25)

	values := make([]float64, 0, 10)
	for i := 0; i < 10; i++ {
		meter.Advance()
		values = append(values, meter.Value())
	}

	// 0.25 step: climbs to 1.0 in 4 ticks, descends back to 0, climbs again.
	want := []float64{0.25, 0.5, 0.75, 1.0, 0.75, 0.5, 0.25, 0.0, 0.25, 0.5}
	for i, v := range values {
		if diff := v - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("tick %d: value = %v, want %v", i, v, want[i])
		}
	}
}

func TestChargeMeter_Bounds(t *testing.T) {
	meter := NewChargeMeter(0.3)
	for i := 0; i < 1000; i++ {
		meter.Advance()
		if v := meter.Value(); v < 0 || v > 1 {
			t.Fatalf("value %v escaped [0,1] at tick %d", v, i)
		}
	}
}

func TestChargeMeter_StopFreezes(t *testing.T) {
	meter := NewChargeMeter(0.1)
	meter.Advance()
	meter.Advance()

	captured := meter.Stop()
	if diff := captured - 0.2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Stop() = %v, want 0.2", captured)
	}

	meter.Advance()
	if meter.Value() != captured {
		t.Error("Expected value frozen after Stop")
	}
	if !meter.Stopped() {
		t.Error("Expected Stopped to report true")
	}
}

func TestChargeMeter_DefaultStep(t *testing.T) {
	meter := NewChargeMeter(0)
	meter.Advance()
	if diff := meter.Value() - DefaultChargeStep; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected default step %v, got %v", DefaultChargeStep, meter.Value())
	}
}
