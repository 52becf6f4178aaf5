package main

import (
	"bytes"
	"testing"

	"github.com/ssd39/adbuddy-voice/internal/config"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		cmd  command
		text string
	}{
		{"", commandNone, ""},
		{"  We sell shoes ", commandText, "We sell shoes"},
		{"/say /mute is a word", commandText, "/mute is a word"},
		{"/say", commandNone, ""},
		{"/MUTE", commandMute, ""},
		{"/unmute", commandUnmute, ""},
		{"/quit", commandQuit, ""},
		{"/exit now", commandQuit, ""},
		{"/dance", commandUnknown, ""},
	}
	for _, tc := range cases {
		cmd, text := parseCommand(tc.line)
		if cmd != tc.cmd || text != tc.text {
			t.Fatalf("parseCommand(%q) = (%v, %q), want (%v, %q)", tc.line, cmd, text, tc.cmd, tc.text)
		}
	}
}

func TestTranscriptPrinterReplacesPartialWithFinal(t *testing.T) {
	var buf bytes.Buffer
	p := &transcriptPrinter{out: &buf}
	p.line("assistant", "Hel", false)
	p.line("assistant", "lo", false)
	p.line("assistant", "Hello", true)
	p.status("disconnected")

	want := "assistant: Hello\r\033[Kassistant: Hello\n[disconnected]\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestCredentialSourceRequiresBackendOrKey(t *testing.T) {
	if _, err := credentialSource(options{}, config.Config{}); err == nil {
		t.Fatalf("credentialSource() expected error without backend or key")
	}
	if _, err := credentialSource(options{backendURL: "http://127.0.0.1:8080"}, config.Config{}); err != nil {
		t.Fatalf("credentialSource(backend) error = %v", err)
	}
	if _, err := credentialSource(options{}, config.Config{OpenAIAPIKey: "sk-test"}); err != nil {
		t.Fatalf("credentialSource(key) error = %v", err)
	}
}
