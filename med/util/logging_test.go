package util

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger()
	l.SetOutput(log.New(&buf, "", 0))

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Error("info should not print at default level", buf.String())
	}
	l.Warn("shown")
	if !strings.HasPrefix(buf.String(), "WARN shown") {
		t.Error("bad warn output", buf.String())
	}
	buf.Reset()
	old := l.SetLogLevel(LevelInfo)
	if old != LogLevelDefault {
		t.Error("bad old level", old)
	}
	l.Infof("x=%d", 3)
	if !strings.HasPrefix(buf.String(), "INFO x=3") {
		t.Error("bad info output", buf.String())
	}
}

func TestBadLevel(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	NewLogger().SetLogLevel(levelMax + 1)
}
