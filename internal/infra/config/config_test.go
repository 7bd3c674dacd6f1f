package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
admin:
  token: secret
slots:
  goal:
    file: goal.wav
  continuous:
    file: crowd.wav
    loop: true
commands:
  goal:
    action: trigger
    settings:
      slot: goal
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/soundboard", cfg.Server.CommandPath)
	assert.Equal(t, "/client", cfg.Server.ClientPath)
	assert.Equal(t, "continuous", cfg.ContinuousSlot)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 100*time.Millisecond, cfg.Audio.BufferDuration())
	assert.Equal(t, -80.0, cfg.Audio.MinGainDB)
	assert.Equal(t, 6.0, cfg.Audio.MaxGainDB)
	assert.Equal(t, 10.0, cfg.Audio.HeadroomDB)
	assert.Equal(t, 400, cfg.Fade.Steps)
	assert.Equal(t, 5*time.Millisecond, cfg.Fade.StepDuration())
	assert.Equal(t, 8, cfg.Executor.Workers)
	assert.Equal(t, 64, cfg.Executor.QueueSize)

	assert.True(t, cfg.Slots["continuous"].Loop)
	assert.Equal(t, "trigger", cfg.Commands["goal"].Action)
	assert.Equal(t, "goal", cfg.Commands["goal"].Settings["slot"])
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name: "missing admin token",
			yaml: `
slots: {continuous: {file: crowd.wav}}
commands: {x: {action: stop_all}}
`,
			errMsg: "Token",
		},
		{
			name: "no slots",
			yaml: `
admin: {token: t}
commands: {x: {action: stop_all}}
`,
			errMsg: "Slots",
		},
		{
			name: "slot without file",
			yaml: `
admin: {token: t}
slots: {continuous: {loop: true}}
commands: {x: {action: stop_all}}
`,
			errMsg: "File",
		},
		{
			name: "continuous slot not configured",
			yaml: `
admin: {token: t}
continuous_slot: crowd
slots: {goal: {file: goal.wav}}
commands: {x: {action: stop_all}}
`,
			errMsg: "continuous_slot",
		},
		{
			name: "command without action",
			yaml: `
admin: {token: t}
slots: {continuous: {file: crowd.wav}}
commands: {x: {settings: {slot: continuous}}}
`,
			errMsg: "Action",
		},
		{
			name: "fade steps out of range",
			yaml: `
admin: {token: t}
fade: {steps: 20000}
slots: {continuous: {file: crowd.wav}}
commands: {x: {action: stop_all}}
`,
			errMsg: "Steps",
		},
		{
			name: "headroom swallows the gain range",
			yaml: `
admin: {token: t}
audio: {min_gain_db: -20, max_gain_db: 0, headroom_db: 30}
slots: {continuous: {file: crowd.wav}}
commands: {x: {action: stop_all}}
`,
			errMsg: "headroom_db",
		},
		{
			name: "command path without slash",
			yaml: `
admin: {token: t}
server: {command_path: soundboard}
slots: {continuous: {file: crowd.wav}}
commands: {x: {action: stop_all}}
`,
			errMsg: "CommandPath",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("GOALHORN_ADMIN_TOKEN", "from-env")
	t.Setenv("GOALHORN_CLIP_DIR", "/srv/sounds")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Admin.Token)
	assert.Equal(t, "/srv/sounds", cfg.Audio.ClipDir)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"continuous", "goal"}, cfg.SlotNames())
	assert.Equal(t, []string{"goal"}, cfg.CommandTokens())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "config", "server.yaml"))
	require.NoError(t, err)

	assert.Len(t, cfg.Slots, 5)
	assert.Len(t, cfg.Commands, 6)
	assert.Equal(t, "continuous", cfg.ContinuousSlot)
}
