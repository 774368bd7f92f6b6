// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fakeMic = &portaudio.DeviceInfo{
		Name:                    "Fake Mic",
		MaxInputChannels:        2,
		DefaultSampleRate:       48000,
		DefaultLowInputLatency:  5 * time.Millisecond,
		DefaultHighInputLatency: 20 * time.Millisecond,
		HostApi:                 &portaudio.HostApiInfo{Name: "Fake API"},
	}
	fakeSpeaker = &portaudio.DeviceInfo{
		Name:              "Fake Speaker",
		MaxOutputChannels: 2,
		DefaultSampleRate: 44100,
	}
)

// withFakeDevices replaces the PortAudio device queries for one test.
func withFakeDevices(t *testing.T, devices []*portaudio.DeviceInfo, def *portaudio.DeviceInfo) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if def == nil {
			return nil, fmt.Errorf("no default input")
		}
		return def, nil
	}
}

func TestHostDevices(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{fakeSpeaker, fakeMic}, fakeMic)

	devices, err := HostDevices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	for i, d := range devices {
		assert.Equal(t, i, d.ID, "Device ID mismatch")
		assert.NotEmpty(t, d.Name)
		assert.Greater(t, d.DefaultSampleRate, 0.0)
	}
	assert.False(t, devices[0].IsInput())
	assert.True(t, devices[1].IsInput())
	assert.True(t, devices[1].IsDefaultInput)
	assert.Equal(t, "Fake API", devices[1].HostAPI)

	inputs, err := InputDevices()
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, 1, inputs[0].ID)
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	assert.ErrorContains(t, err, "mock error")
	_, err = InputDevice(-1)
	assert.ErrorContains(t, err, "mock error")
}

func TestInputDevice(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{fakeSpeaker, fakeMic}, fakeMic)

	dev, err := InputDevice(-1)
	require.NoError(t, err)
	assert.Equal(t, "Fake Mic", dev.Name)

	dev, err = InputDevice(1)
	require.NoError(t, err)
	assert.Same(t, fakeMic, dev)

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", 12, "invalid device ID"},
		{"Non-input device", 0, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDevice)
			assert.True(t, strings.Contains(err.Error(), tt.substr), "Error = %q, want substring %q", err, tt.substr)
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{fakeSpeaker}, nil)

	_, err := InputDevice(-1)
	assert.ErrorContains(t, err, "no default input")
}

func TestListDevices(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{fakeSpeaker, fakeMic}, fakeMic)

	var buf bytes.Buffer
	require.NoError(t, ListDevices(&buf))
	out := buf.String()
	assert.Contains(t, out, "[0] Fake Speaker (Output)")
	assert.Contains(t, out, "[1] Fake Mic (Input)")
	assert.Contains(t, out, "Default sample rate: 48000 Hz")
	assert.Contains(t, out, "Latency: Low=5.00ms, High=20.00ms")
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	assert.NoError(t, Initialize())

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	assert.ErrorContains(t, Initialize(), "mock init error")
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	assert.NoError(t, Terminate())

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	assert.ErrorContains(t, Terminate(), "mock term error")
}

func TestNilDevices(t *testing.T) {
	withFakeDevices(t, nil, nil)

	devices, err := paDevices()
	require.NoError(t, err)
	assert.NotNil(t, devices, "expected empty slice, got nil")
	assert.Empty(t, devices)
}

func TestPortAudioNotInitialized(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	devices, err := paDevices()
	assert.ErrorContains(t, err, "PortAudio not initialized")
	assert.Nil(t, devices)
}
