package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_SetsLevelAndPrettyMode(t *testing.T) {
	defer func() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		SetPrettyMode(false)
	}()

	tests := []struct {
		name      string
		debug     bool
		human     bool
		wantLevel zerolog.Level
	}{
		{"json_info", false, false, zerolog.InfoLevel},
		{"json_debug", true, false, zerolog.DebugLevel},
		{"human_info", false, true, zerolog.InfoLevel},
		{"human_debug", true, true, zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(tt.debug, tt.human)
			if got := zerolog.GlobalLevel(); got != tt.wantLevel {
				t.Errorf("GlobalLevel() = %v, want %v", got, tt.wantLevel)
			}
			if got := IsPrettyMode(); got != tt.human {
				t.Errorf("IsPrettyMode() = %v, want %v", got, tt.human)
			}
			L().Info().Msg("init test")
		})
	}
}

func TestWithPhase(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	log := WithPhase("test_phase")
	log.Info().Msg("test message")

	if buf.Len() == 0 {
		t.Fatal("expected log output, got empty string")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"phase":"test_phase"`)) {
		t.Errorf("expected phase field in output, got: %s", buf.String())
	}
}
