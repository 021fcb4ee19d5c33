package evacalor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// statusNames carries the vendor app's wording for the platform status
// codes. Codes the app leaves unnamed read "?".
var statusNames = map[int]string{
	0: "OFF",
	1: "START",
	2: "LOAD PELLETS",
	3: "FLAME LIGHT",
	4: "ON",
	5: "CLEANING FIRE-POT",
	6: "CLEANING FINAL",
	7: "ECO-STOP",
	9: "NO PELLETS",
}

// StatusText translates a platform status code to the vendor app wording,
// for example 4 to "ON" and 7 to "ECO-STOP".
func StatusText(status int) string {
	if text, ok := statusNames[status]; ok {
		return text
	}
	return "?"
}

// loadDevices populates the registry: the account's device list, each
// device's register map, and a first buffer reading per device.
func (c *Connection) loadDevices(ctx context.Context) error {
	entries, err := c.fetchDeviceList(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IDDevice == "" {
			return &ServiceError{Op: "deviceList", Message: "device entry without id_device"}
		}
		if _, exists := c.byID[entry.IDDevice]; exists {
			return &ServiceError{Op: "deviceList", Message: fmt.Sprintf("duplicate device id %s", entry.IDDevice)}
		}

		mapID, err := c.fetchRegistersMapID(ctx, entry)
		if err != nil {
			return err
		}
		regs, err := c.fetchRegisterMap(ctx, entry, mapID)
		if err != nil {
			return err
		}
		r, err := c.readBuffer(ctx, entry)
		if err != nil {
			return err
		}

		state := &deviceState{entry: entry, regs: regs}
		state.snap = buildSnapshot(entry, regs, r, time.Now())
		c.devices = append(c.devices, state)
		c.byID[entry.IDDevice] = state
	}
	return nil
}

// buildSnapshot decodes raw readings into a Device snapshot. A reading
// that is missing or fails to decode leaves its field at the unknown
// value; the snapshot itself is always produced.
func buildSnapshot(entry deviceEntry, regs registerMap, r readings, at time.Time) Device {
	d := Device{
		ID:          entry.IDDevice,
		Product:     entry.IDProduct,
		Serial:      entry.ProductSerial,
		Name:        entry.Name,
		Model:       entry.NameProduct,
		Online:      entry.IsOnline,
		StatusText:  "?",
		RefreshedAt: at,
	}

	if v, ok := regs.value(regAirTemp, r); ok {
		d.AirTemperature = &v
	}
	if v, ok := regs.value(regSmokeTemp, r); ok {
		d.SmokeTemperature = &v
	}
	if v, ok := regs.value(regTargetTemp, r); ok {
		d.TargetTemperature = v
	}
	if reg, ok := regs[regTargetTemp]; ok {
		d.TargetMin = reg.setMin
		d.TargetMax = reg.setMax
	}

	if v, ok := regs.value(regStatus, r); ok {
		d.Status = int(v)
		d.StatusText = StatusText(d.Status)
	}
	if v, ok := regs.value(regAlarms, r); ok {
		d.Alarms = int(v)
	}
	if v, ok := regs.value(regRealPower, r); ok {
		d.RealPower = int(v)
	}

	if reg, ok := regs[regManagedPower]; ok {
		if v, decoded := regs.value(regManagedPower, r); decoded {
			if on, found := reg.lookupValue("on"); found {
				d.Power = int(v) == on
			}
		}
	}

	if reg, ok := regs[regManagedEnable]; ok {
		d.Modes = reg.descriptions()
		if v, decoded := regs.value(regManagedEnable, r); decoded {
			if desc, found := reg.lookupDescription(int(v)); found {
				d.Mode = desc
			}
		}
	}

	if reg, ok := regs[regPowerLevel]; ok {
		d.PowerLevelMin = int(reg.setMin)
		d.PowerLevelMax = int(reg.setMax)
	}
	if v, ok := regs.value(regPowerLevel, r); ok {
		d.PowerLevel = int(v)
	}

	return d
}

// Devices returns snapshots of every device on the account, in the order
// the platform lists them.
func (c *Connection) Devices() []Device {
	out := make([]Device, 0, len(c.devices))
	for _, state := range c.devices {
		out = append(out, state.snap)
	}
	return out
}

// Device returns the snapshot of one device by its identifier.
func (c *Connection) Device(id string) (Device, bool) {
	state, ok := c.byID[id]
	if !ok {
		return Device{}, false
	}
	return state.snap, true
}

// Refresh re-reads one device's state from the platform and returns the
// fresh snapshot. On failure the last-known-good snapshot is kept.
func (c *Connection) Refresh(ctx context.Context, deviceID string) (Device, error) {
	state, err := c.state(deviceID)
	if err != nil {
		return Device{}, err
	}
	return c.refreshState(ctx, state)
}

// SetPower turns the device on or off. Like every write, the returned
// snapshot is re-read from the platform, not assumed locally.
func (c *Connection) SetPower(ctx context.Context, deviceID string, on bool) (Device, error) {
	state, err := c.state(deviceID)
	if err != nil {
		return Device{}, err
	}
	reg, ok := state.regs[regManagedPower]
	if !ok {
		return Device{}, &ServiceError{Op: "deviceRequestWriting", Message: "device advertises no managed power register"}
	}

	want := "off"
	if on {
		want = "on"
	}
	value, ok := reg.lookupValue(want)
	if !ok {
		return Device{}, &ServiceError{Op: "deviceRequestWriting", Message: fmt.Sprintf("managed power register advertises no %q value", want)}
	}

	if err := c.writeRegister(ctx, state.entry, reg, value); err != nil {
		return Device{}, err
	}
	return c.refreshState(ctx, state)
}

// SetTargetTemperature sets the target air temperature. The value is
// validated against the range the device advertises; an out-of-range
// value fails with ValidationError before any request is sent.
func (c *Connection) SetTargetTemperature(ctx context.Context, deviceID string, value float64) (Device, error) {
	state, err := c.state(deviceID)
	if err != nil {
		return Device{}, err
	}
	reg, ok := state.regs[regTargetTemp]
	if !ok {
		return Device{}, &ServiceError{Op: "deviceRequestWriting", Message: "device advertises no target temperature register"}
	}
	if value < reg.setMin || value > reg.setMax {
		return Device{}, &ValidationError{
			Message: fmt.Sprintf("target temperature %g out of range %g to %g", value, reg.setMin, reg.setMax),
		}
	}

	raw, err := reg.encode(value)
	if err != nil {
		return Device{}, &ServiceError{Op: "deviceRequestWriting", Message: fmt.Sprintf("encoding target temperature: %v", err)}
	}
	if err := c.writeRegister(ctx, state.entry, reg, raw); err != nil {
		return Device{}, err
	}
	return c.refreshState(ctx, state)
}

// SetMode sets the operating mode. The mode must be one of the closed set
// the device advertises (see Device.Modes); anything else fails with
// ValidationError before any request is sent.
func (c *Connection) SetMode(ctx context.Context, deviceID string, mode string) (Device, error) {
	state, err := c.state(deviceID)
	if err != nil {
		return Device{}, err
	}
	reg, ok := state.regs[regManagedEnable]
	if !ok {
		return Device{}, &ServiceError{Op: "deviceRequestWriting", Message: "device advertises no operating mode register"}
	}
	value, ok := reg.lookupValue(mode)
	if !ok {
		return Device{}, &ValidationError{
			Message: fmt.Sprintf("unknown mode %q, device advertises: %s", mode, strings.Join(reg.descriptions(), ", ")),
		}
	}

	if err := c.writeRegister(ctx, state.entry, reg, value); err != nil {
		return Device{}, err
	}
	return c.refreshState(ctx, state)
}

// SetPowerLevel sets the burn power level, typically 1 to 5. The level is
// validated against the range the device advertises.
func (c *Connection) SetPowerLevel(ctx context.Context, deviceID string, level int) (Device, error) {
	state, err := c.state(deviceID)
	if err != nil {
		return Device{}, err
	}
	reg, ok := state.regs[regPowerLevel]
	if !ok {
		return Device{}, &ServiceError{Op: "deviceRequestWriting", Message: "device advertises no power level register"}
	}
	if float64(level) < reg.setMin || float64(level) > reg.setMax {
		return Device{}, &ValidationError{
			Message: fmt.Sprintf("power level %d out of range %g to %g", level, reg.setMin, reg.setMax),
		}
	}

	raw, err := reg.encode(float64(level))
	if err != nil {
		return Device{}, &ServiceError{Op: "deviceRequestWriting", Message: fmt.Sprintf("encoding power level: %v", err)}
	}
	if err := c.writeRegister(ctx, state.entry, reg, raw); err != nil {
		return Device{}, err
	}
	return c.refreshState(ctx, state)
}

func (c *Connection) state(deviceID string) (*deviceState, error) {
	state, ok := c.byID[deviceID]
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown device %q", deviceID)}
	}
	return state, nil
}

func (c *Connection) refreshState(ctx context.Context, state *deviceState) (Device, error) {
	r, err := c.readBuffer(ctx, state.entry)
	if err != nil {
		return Device{}, err
	}
	state.snap = buildSnapshot(state.entry, state.regs, r, time.Now())
	return state.snap, nil
}
