package evacalor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSetTargetTemperatureRoundTrip(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)

	device, err := conn.SetTargetTemperature(context.Background(), "dev-living", 21.5)
	if err != nil {
		t.Fatalf("SetTargetTemperature: %v", err)
	}
	if device.TargetTemperature != 21.5 {
		t.Fatalf("target after write = %v, want 21.5", device.TargetTemperature)
	}

	if len(p.writes) != 1 {
		t.Fatalf("writes issued = %d, want 1", len(p.writes))
	}
	write := p.writes[0]
	if write.IDDevice != "dev-living" || write.IDProduct != "prod-1" {
		t.Fatalf("write addressed to %q/%q", write.IDDevice, write.IDProduct)
	}
	if write.Protocol != "RWMSmaster" {
		t.Fatalf("write protocol = %q", write.Protocol)
	}
	if !reflect.DeepEqual(write.BitData, []int{8}) || !reflect.DeepEqual(write.Endianess, []string{"L"}) {
		t.Fatalf("write framing = %v %v", write.BitData, write.Endianess)
	}
	if !reflect.DeepEqual(write.Items, []int{2}) || !reflect.DeepEqual(write.Masks, []int{255}) {
		t.Fatalf("write items/masks = %v/%v", write.Items, write.Masks)
	}
	// 21.5 degrees through the inverse formula #*2.
	if !reflect.DeepEqual(write.Values, []int{43}) {
		t.Fatalf("write values = %v, want [43]", write.Values)
	}
}

func TestSetTargetTemperatureOutOfRange(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)
	requests := p.requests

	_, err := conn.SetTargetTemperature(context.Background(), "dev-living", 35)
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(valErr.Error(), "out of range") {
		t.Fatalf("unexpected validation message: %v", valErr)
	}
	if p.requests != requests {
		t.Fatalf("out-of-range write issued %d network calls", p.requests-requests)
	}
}

func TestSetModeRoundTrip(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)

	// Mode names match case-insensitively against the advertised set.
	device, err := conn.SetMode(context.Background(), "dev-bedroom", "AUTO")
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if device.Mode != "auto" {
		t.Fatalf("mode after write = %q, want auto", device.Mode)
	}
	if len(p.writes) != 1 || !reflect.DeepEqual(p.writes[0].Items, []int{5}) || !reflect.DeepEqual(p.writes[0].Values, []int{0}) {
		t.Fatalf("unexpected mode write: %+v", p.writes)
	}
}

func TestSetModeUnknownMode(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)
	requests := p.requests

	_, err := conn.SetMode(context.Background(), "dev-living", "turbo")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(valErr.Error(), "auto, manual") {
		t.Fatalf("validation message does not list advertised modes: %v", valErr)
	}
	if p.requests != requests {
		t.Fatalf("unknown mode issued %d network calls", p.requests-requests)
	}
}

func TestSetPower(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)

	device, err := conn.SetPower(context.Background(), "dev-living", false)
	if err != nil {
		t.Fatalf("SetPower(false): %v", err)
	}
	if device.Power {
		t.Fatalf("device still reports power on after shutdown")
	}
	if !reflect.DeepEqual(p.writes[0].Items, []int{4}) || !reflect.DeepEqual(p.writes[0].Values, []int{0}) {
		t.Fatalf("unexpected power-off write: %+v", p.writes[0])
	}

	device, err = conn.SetPower(context.Background(), "dev-living", true)
	if err != nil {
		t.Fatalf("SetPower(true): %v", err)
	}
	if !device.Power {
		t.Fatalf("device reports power off after ignition")
	}
	if !reflect.DeepEqual(p.writes[1].Values, []int{1}) {
		t.Fatalf("unexpected power-on write: %+v", p.writes[1])
	}
	if p.writeCalls != 2 {
		t.Fatalf("write requests = %d, want 2", p.writeCalls)
	}
}

func TestSetPowerLevel(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)

	device, err := conn.SetPowerLevel(context.Background(), "dev-living", 5)
	if err != nil {
		t.Fatalf("SetPowerLevel: %v", err)
	}
	if device.PowerLevel != 5 {
		t.Fatalf("power level after write = %d, want 5", device.PowerLevel)
	}

	requests := p.requests
	_, err = conn.SetPowerLevel(context.Background(), "dev-living", 9)
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if p.requests != requests {
		t.Fatalf("out-of-range level issued %d network calls", p.requests-requests)
	}
}

func TestWriteWithoutAcknowledgement(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)

	p.dropWriteAck = true
	_, err := conn.SetPower(context.Background(), "dev-living", false)
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if !strings.Contains(svcErr.Error(), "acknowledgement") {
		t.Fatalf("unexpected error: %v", svcErr)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)

	first, err := conn.Refresh(context.Background(), "dev-living")
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	second, err := conn.Refresh(context.Background(), "dev-living")
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}

	first.RefreshedAt = time.Time{}
	second.RefreshedAt = time.Time{}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("snapshots differ across idempotent refreshes:\n%+v\n%+v", first, second)
	}
}

func TestFailedRefreshKeepsLastSnapshot(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)

	p.devices[0].values[1] = 50
	p.failJobs = true
	if _, err := conn.Refresh(context.Background(), "dev-living"); err == nil {
		t.Fatalf("expected refresh to fail")
	}

	device, ok := conn.Device("dev-living")
	if !ok {
		t.Fatalf("device gone after failed refresh")
	}
	if device.AirTemperature == nil || *device.AirTemperature != 21.5 {
		t.Fatalf("failed refresh clobbered snapshot: %+v", device.AirTemperature)
	}

	p.failJobs = false
	device, err := conn.Refresh(context.Background(), "dev-living")
	if err != nil {
		t.Fatalf("Refresh after recovery: %v", err)
	}
	if device.AirTemperature == nil || *device.AirTemperature != 25 {
		t.Fatalf("air temperature = %v, want 25", device.AirTemperature)
	}
}

func TestUnknownDeviceRejected(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)
	requests := p.requests

	for name, call := range map[string]func() error{
		"Refresh": func() error {
			_, err := conn.Refresh(context.Background(), "no-such-device")
			return err
		},
		"SetPower": func() error {
			_, err := conn.SetPower(context.Background(), "no-such-device", true)
			return err
		},
	} {
		var valErr *ValidationError
		if err := call(); !errors.As(err, &valErr) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
	}
	if p.requests != requests {
		t.Fatalf("unknown device issued %d network calls", p.requests-requests)
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{0, "OFF"},
		{1, "START"},
		{4, "ON"},
		{7, "ECO-STOP"},
		{9, "NO PELLETS"},
		{8, "?"},
		{42, "?"},
	}
	for _, tt := range tests {
		if got := StatusText(tt.status); got != tt.want {
			t.Errorf("StatusText(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
