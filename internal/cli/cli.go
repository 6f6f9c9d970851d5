// Package cli parses the talkie command line.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandChat       Command = "chat"
	CommandToggle     Command = "toggle"
	CommandStop       Command = "stop"
	CommandCancel     Command = "cancel"
	CommandStatus     Command = "status"
	CommandReplay     Command = "replay"
	CommandHistory    Command = "history"
	CommandClear      Command = "clear"
	CommandKeysSet    Command = "keys set"
	CommandKeysDelete Command = "keys delete"
	CommandVoices     Command = "voices"
	CommandVoice      Command = "voice"
	CommandVolume     Command = "volume"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

// arity is the exact number of positional arguments each command takes.
var arity = map[Command]int{
	CommandChat:       0,
	CommandToggle:     0,
	CommandStop:       0,
	CommandCancel:     0,
	CommandStatus:     0,
	CommandReplay:     1,
	CommandHistory:    0,
	CommandClear:      0,
	CommandKeysSet:    2,
	CommandKeysDelete: 0,
	CommandVoices:     0,
	CommandVoice:      1,
	CommandVolume:     1,
	CommandDevices:    0,
	CommandDoctor:     0,
	CommandVersion:    0,
	CommandHelp:       0,
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	ShowHelp   bool
}

// IPC reports whether the command is forwarded to a running chat process.
func (p Parsed) IPC() bool {
	switch p.Command {
	case CommandToggle, CommandStop, CommandCancel, CommandStatus, CommandReplay:
		return true
	default:
		return false
	}
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd, rest, err := command(arg, args[i+1:])
			if err != nil {
				return Parsed{}, err
			}
			if want := arity[cmd]; len(rest) != want {
				return Parsed{}, fmt.Errorf("command %q takes %d argument(s), got %d", cmd, want, len(rest))
			}
			if cmd == CommandVolume {
				if _, err := ParseVolume(rest[0]); err != nil {
					return Parsed{}, err
				}
			}

			parsed.Command = cmd
			parsed.Args = rest
			parsed.ShowHelp = cmd == CommandHelp
			return parsed, nil
		}
	}

	return parsed, nil
}

func command(arg string, rest []string) (Command, []string, error) {
	if arg == "keys" {
		if len(rest) == 0 {
			return "", nil, errors.New("keys requires a subcommand: set or delete")
		}
		cmd := Command("keys " + rest[0])
		if _, ok := arity[cmd]; !ok {
			return "", nil, fmt.Errorf("unknown keys subcommand: %s", rest[0])
		}
		return cmd, rest[1:], nil
	}

	cmd := Command(arg)
	if _, ok := arity[cmd]; !ok || strings.Contains(arg, " ") {
		return "", nil, fmt.Errorf("unknown command: %s", arg)
	}
	return cmd, rest, nil
}

// ParseVolume converts a 0-100 percentage to a 0..1 volume.
func ParseVolume(raw string) (float64, error) {
	pct, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if err != nil || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("volume must be an integer from 0 to 100, got %q", raw)
	}
	return float64(pct) / 100, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  chat                          Start an interactive voice conversation
  toggle                        Start recording, stop recording, or stop playback
  stop                          Stop the active recording or playback
  cancel                        Discard the active recording
  status                        Print the chat session state
  replay <timestamp>            Replay cached audio for a reply
  history                       Print the conversation with timestamps
  clear                         Clear the conversation and audio cache
  keys set <gemini> <elevenlabs>  Save both API keys
  keys delete                   Delete saved API keys
  voices                        List available voices
  voice <id>                    Select the reply voice
  volume <0-100>                Set playback volume
  devices                       List available input devices
  doctor                        Run configuration and environment checks
  version                       Print version information
  help                          Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/talkie/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
