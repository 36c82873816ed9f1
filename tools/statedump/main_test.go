package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestDumpMemory(t *testing.T) {
	mem := []byte{0x00, 0x01, 0x02, 0x03, 0x04}
	prev := []byte{0x00, 0xff, 0x02, 0x03, 0x05}

	var buf bytes.Buffer
	dumpMemory(&buf, mem, prev, 4)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{
		"000: 00 [01] 02  03",
		"004:[04]",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDumpMemoryNoPrev(t *testing.T) {
	var buf bytes.Buffer
	dumpMemory(&buf, make([]byte, 32), nil, 16)
	if strings.Count(buf.String(), "\n") != 2 || strings.Contains(buf.String(), "[") {
		t.Errorf("got %q", buf.String())
	}
}
