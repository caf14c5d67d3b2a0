package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Device describes one host audio device.
type Device struct {
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// Initialize prepares the host audio subsystem. Must be called once before
// opening any stream, and paired with Terminate on shutdown.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize audio subsystem: %w", err)
	}
	return nil
}

// Terminate releases the host audio subsystem.
func Terminate() {
	_ = portaudio.Terminate()
}

// Devices lists all host audio devices.
func Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	defaultIn, _ := portaudio.DefaultInputDevice()
	defaultOut, _ := portaudio.DefaultOutputDevice()

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			DefaultInput:      defaultIn != nil && info == defaultIn,
			DefaultOutput:     defaultOut != nil && info == defaultOut,
		})
	}
	return devices, nil
}
