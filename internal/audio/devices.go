// Package audio handles device discovery, PCM capture and playback, WAV
// framing and data URIs.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const applicationName = "talkie"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// problem names why the device cannot record, or returns "".
func (d Device) problem() string {
	switch {
	case d.Muted:
		return "muted"
	case !d.Available:
		return "unavailable"
	default:
		return ""
	}
}

// Selection is the source to record from. Warning is set when the
// configured input could not be used.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// connect opens a Pulse client tagged with talkie's name and icon.
func connect(icon string) (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(applicationName),
		pulse.ClientApplicationIconName(icon),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns the Pulse input sources.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := connect("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(reply))
	for _, src := range reply {
		if src == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          src.SourceName,
			Description: src.Device,
			State:       sourceState(src.State),
			Available:   activePortAvailable(src),
			Muted:       src.Mute,
			Default:     src.SourceName == def.ID(),
		})
	}
	return devices, nil
}

// SelectDevice resolves the configured input and fallback against the live
// source list.
func SelectDevice(ctx context.Context, input, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return choose(devices, input, fallback)
}

// choose uses input when it can record, otherwise fallback. Both accept
// "default" or "" for the server default, or a substring of a source ID or
// description.
func choose(devices []Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	primary, err := find(devices, input)
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input: %w", err)
	}
	reason := primary.problem()
	if reason == "" {
		return Selection{Device: primary}, nil
	}

	alt, err := find(devices, fallback)
	if err != nil {
		return Selection{}, fmt.Errorf("input %q is %s and audio.fallback failed: %w", primary.ID, reason, err)
	}
	if p := alt.problem(); p != "" {
		return Selection{}, fmt.Errorf("input %q is %s and fallback %q is %s", primary.ID, reason, alt.ID, p)
	}
	return Selection{
		Device:   alt,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, alt.ID),
		Fallback: alt.ID != primary.ID,
	}, nil
}

func find(devices []Device, term string) (Device, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	for _, d := range devices {
		if term == "" || term == "default" {
			if d.Default {
				return d, nil
			}
			continue
		}
		if strings.Contains(strings.ToLower(d.ID), term) || strings.Contains(strings.ToLower(d.Description), term) {
			return d, nil
		}
	}
	if term == "" || term == "default" {
		return Device{}, errors.New("default audio source is unavailable")
	}
	return Device{}, fmt.Errorf("%q did not match any device", term)
}

var sourceStates = [...]string{"running", "idle", "suspended"}

func sourceState(state uint32) string {
	if int(state) < len(sourceStates) {
		return sourceStates[state]
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// activePortAvailable reports the availability of the source's active port.
// Pulse encodes port availability as unknown=0, no=1, yes=2; only "no" counts
// as unavailable.
func activePortAvailable(src *pulseproto.GetSourceInfoReply) bool {
	if src == nil {
		return false
	}
	for _, port := range src.Ports {
		if port.Name == src.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
