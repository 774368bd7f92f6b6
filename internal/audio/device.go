// SPDX-License-Identifier: MIT
package audio

import "time"

// Device describes one host audio device.
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
	IsDefaultInput    bool
}

// IsInput reports whether the device can capture.
func (d Device) IsInput() bool {
	return d.MaxInputChannels > 0
}

// HostDevices returns all available audio devices. PortAudio must be
// initialized.
func HostDevices() ([]Device, error) {
	paDeviceInfos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	// A missing default input is not an error for listing.
	defaultName := ""
	if def, err := paLibDefaultInputDeviceFunc(); err == nil && def != nil {
		defaultName = def.Name
	}

	devices := make([]Device, len(paDeviceInfos))
	for i, info := range paDeviceInfos {
		hostAPI := ""
		if info.HostApi != nil {
			hostAPI = info.HostApi.Name
		}
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			HostAPI:           hostAPI,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowInputLatency:   info.DefaultLowInputLatency,
			HighInputLatency:  info.DefaultHighInputLatency,
			IsDefaultInput:    info.MaxInputChannels > 0 && info.Name == defaultName,
		}
	}

	return devices, nil
}

// InputDevices returns only the devices that can capture.
func InputDevices() ([]Device, error) {
	all, err := HostDevices()
	if err != nil {
		return nil, err
	}
	inputs := make([]Device, 0, len(all))
	for _, d := range all {
		if d.IsInput() {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}
