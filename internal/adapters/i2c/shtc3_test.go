package i2c

import (
	"errors"
	"testing"
	"time"
)

type fakeSHTC3 struct {
	milliC  int32
	rhx100  int16
	readErr error
	awake   bool
	wakes   int
}

func (f *fakeSHTC3) WakeUp() error {
	f.awake = true
	f.wakes++
	return nil
}

func (f *fakeSHTC3) Sleep() error {
	f.awake = false
	return nil
}

func (f *fakeSHTC3) ReadTemperatureHumidity() (int32, int16, error) {
	if !f.awake {
		return 0, 0, errors.New("asleep")
	}
	return f.milliC, f.rhx100, f.readErr
}

func waitCollect(t *testing.T, s *SHTC3) ([]float64, error) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if values, ok, err := s.Collect(); ok {
			return values, err
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no measurement")
	return nil, nil
}

func TestSHTC3_Measure(t *testing.T) {
	dev := &fakeSHTC3{milliC: 21500, rhx100: 4525}
	s := newSHTC3(dev)

	if err := s.Trigger(time.Now()); err != nil {
		t.Fatal(err)
	}
	values, err := waitCollect(t, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 || values[0] != 21.5 || values[1] != 45.25 {
		t.Errorf("values = %v, want [21.5 45.25]", values)
	}
	if dev.awake {
		t.Error("sensor left awake")
	}
}

func TestSHTC3_ReadError(t *testing.T) {
	dev := &fakeSHTC3{readErr: errors.New("crc mismatch")}
	s := newSHTC3(dev)
	s.Trigger(time.Now())
	values, err := waitCollect(t, s)
	if err == nil || values != nil {
		t.Errorf("Collect() = %v, %v; want error", values, err)
	}
	if dev.awake {
		t.Error("sensor left awake after error")
	}
}

func TestSHTC3_Sensors(t *testing.T) {
	got := newSHTC3(&fakeSHTC3{}).Sensors()
	if len(got) != 2 || got[0].Unit != "C" || got[1].Unit != "%" {
		t.Errorf("Sensors() = %+v", got)
	}
}
