package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

var (
	deskMic   = Device{ID: "alsa_input.usb-desk", Description: "Desk Microphone", Available: true, Default: true}
	headset   = Device{ID: "bluez_input.headset", Description: "Travel Headset", Available: true}
	unplugged = Device{ID: "alsa_input.jack", Description: "Line In"}
)

func TestChooseDefault(t *testing.T) {
	for _, input := range []string{"", "default", " Default "} {
		sel, err := choose([]Device{headset, deskMic}, input, "default")
		require.NoError(t, err)
		require.Equal(t, deskMic.ID, sel.Device.ID)
		require.Empty(t, sel.Warning)
		require.False(t, sel.Fallback)
	}
}

func TestChooseMatchesIDOrDescription(t *testing.T) {
	sel, err := choose([]Device{deskMic, headset}, "bluez", "")
	require.NoError(t, err)
	require.Equal(t, headset.ID, sel.Device.ID)

	sel, err = choose([]Device{deskMic, headset}, "travel", "")
	require.NoError(t, err)
	require.Equal(t, headset.ID, sel.Device.ID)
}

func TestChooseFallsBackFromMutedInput(t *testing.T) {
	muted := headset
	muted.Muted = true

	sel, err := choose([]Device{deskMic, muted}, "headset", "default")
	require.NoError(t, err)
	require.Equal(t, deskMic.ID, sel.Device.ID)
	require.True(t, sel.Fallback)
	require.Contains(t, sel.Warning, "is muted; falling back to")
}

func TestChooseFallsBackFromUnavailableInput(t *testing.T) {
	sel, err := choose([]Device{deskMic, headset, unplugged}, "line in", "headset")
	require.NoError(t, err)
	require.Equal(t, headset.ID, sel.Device.ID)
	require.Contains(t, sel.Warning, "unavailable")
}

func TestChooseErrors(t *testing.T) {
	_, err := choose(nil, "default", "default")
	require.ErrorContains(t, err, "no audio input devices")

	_, err = choose([]Device{deskMic}, "studio", "default")
	require.ErrorContains(t, err, "did not match any device")

	muted := deskMic
	muted.Muted = true
	_, err = choose([]Device{muted}, "default", "default")
	require.ErrorContains(t, err, "fallback \"alsa_input.usb-desk\" is muted")

	_, err = choose([]Device{deskMic, unplugged}, "line", "studio")
	require.ErrorContains(t, err, "audio.fallback failed")

	noDefault := headset
	noDefault.Muted = true
	_, err = choose([]Device{noDefault}, "headset", "")
	require.ErrorContains(t, err, "default audio source is unavailable")
}

func TestSourceState(t *testing.T) {
	require.Equal(t, "running", sourceState(0))
	require.Equal(t, "idle", sourceState(1))
	require.Equal(t, "suspended", sourceState(2))
	require.Equal(t, "unknown(7)", sourceState(7))
}

func TestActivePortAvailable(t *testing.T) {
	require.False(t, activePortAvailable(nil))
	require.True(t, activePortAvailable(&pulseproto.GetSourceInfoReply{}))

	for availability, want := range map[uint32]bool{0: true, 1: false, 2: true} {
		src := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
		setPorts(src, map[string]uint32{"mic": availability, "line": 1})
		require.Equal(t, want, activePortAvailable(src), "availability %d", availability)
	}
}

func TestDeviceDiscoveryWithoutPulse(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	_, err := ListDevices(context.Background())
	require.ErrorContains(t, err, "connect pulse server")
	_, err = SelectDevice(context.Background(), "default", "default")
	require.Error(t, err)
}

// setPorts fills reply.Ports without naming the proto package's unexported
// element type.
func setPorts(reply *pulseproto.GetSourceInfoReply, ports map[string]uint32) {
	field := reflect.ValueOf(reply).Elem().FieldByName("Ports")
	slice := reflect.MakeSlice(field.Type(), 0, len(ports))
	for name, availability := range ports {
		port := reflect.New(field.Type().Elem()).Elem()
		port.FieldByName("Name").SetString(name)
		port.FieldByName("Available").SetUint(uint64(availability))
		slice = reflect.Append(slice, port)
	}
	field.Set(slice)
}
