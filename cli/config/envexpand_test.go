package config

import (
	"strings"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("GRIDCAP_BUCKET", "icons")
	t.Setenv("GRIDCAP_EMPTY", "")
	t.Setenv("GRIDCAP_SHOT", "grim -")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "path: ${GRIDCAP_BUCKET}/raw", "path: icons/raw"},
		{"unset expands empty", "region: ${GRIDCAP_UNSET_12345}", "region: "},
		{"default when unset", "backend: ${GRIDCAP_UNSET_12345:-fs}", "backend: fs"},
		{"default when empty", "backend: ${GRIDCAP_EMPTY:-fs}", "backend: fs"},
		{"default ignored when set", "path: ${GRIDCAP_BUCKET:-screenshots}", "path: icons"},
		{"default with spaces", "command: [${GRIDCAP_UNSET_12345:-scrot -o -}]", "command: [scrot -o -]"},
		{"several on one line", "${GRIDCAP_SHOT} > ${GRIDCAP_BUCKET}", "grim - > icons"},
		{"required and set", "url: ${GRIDCAP_BUCKET:?bucket}", "url: icons"},
		{"no references", "mode: once", "mode: once"},
		{"bare dollar untouched", "prefix: $HOME and ${", "prefix: $HOME and ${"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnv(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnv_RequiredMissing(t *testing.T) {
	t.Setenv("GRIDCAP_EMPTY", "")

	input := `adapter:
  url: ${GRIDCAP_UNSET_WEBHOOK:?webhook url for completion events}
storage:
  path: ${GRIDCAP_EMPTY:?}
`
	_, err := ExpandEnv(input)
	if err == nil {
		t.Fatal("expected error for unset required variables")
	}
	for _, want := range []string{"GRIDCAP_UNSET_WEBHOOK", "webhook url for completion events", "GRIDCAP_EMPTY", "required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestLoad_ExpandsCaptureAndStorage(t *testing.T) {
	t.Setenv("GRIDCAP_ROOT", "/srv/icons")

	path := writeTemp(t, `capture:
  command: [sh, -c, "${GRIDCAP_CAPTURE_CMD:-grim -}"]
storage:
  path: ${GRIDCAP_ROOT}
server:
  path: ${GRIDCAP_SERVER:-./bedrock_server}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "capture.command[2]", cfg.Capture.Command[2], "grim -")
	assertEqual(t, "storage.path", cfg.Storage.Path, "/srv/icons")
	assertEqual(t, "server.path", cfg.Server.Path, "./bedrock_server")
}

func TestLoad_RequiredVariableMissing(t *testing.T) {
	path := writeTemp(t, "storage:\n  path: ${GRIDCAP_UNSET_ROOT:?output root}\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing required variable")
	}
	if !strings.Contains(err.Error(), "GRIDCAP_UNSET_ROOT") {
		t.Errorf("error should name the variable, got: %v", err)
	}
}
