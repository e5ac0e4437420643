package debug

import (
	"bytes"
	"os"
	"testing"
)

func TestLogRespectsFlags(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	defer func() { Enabled, Media = false, false }()

	Enabled = false
	Log("hidden %d\n", 1)
	MediaLog("hidden frame\n")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	Enabled = true
	Log("shown %d\n", 2)
	Logln("line")
	if got := buf.String(); got != "shown 2\nline\n" {
		t.Errorf("output = %q", got)
	}

	buf.Reset()
	Media = true
	MediaLog("frame %dx%d\n", 640, 480)
	if got := buf.String(); got != "frame 640x480\n" {
		t.Errorf("media output = %q", got)
	}
}
