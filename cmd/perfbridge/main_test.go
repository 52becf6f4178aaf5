package main

import (
	"testing"
	"time"
)

func TestWSURLForSession(t *testing.T) {
	got, err := wsURLForSession("https://voice.example.com/base/", "abc 1")
	if err != nil {
		t.Fatalf("wsURLForSession() error = %v", err)
	}
	want := "wss://voice.example.com/base/v1/voice/session/ws?session_id=abc+1"
	if got != want {
		t.Fatalf("wsURLForSession() = %q, want %q", got, want)
	}

	if _, err := wsURLForSession("ftp://voice.example.com", "x"); err == nil {
		t.Fatalf("wsURLForSession(ftp) expected error")
	}
	if _, err := wsURLForSession("http://", "x"); err == nil {
		t.Fatalf("wsURLForSession(no host) expected error")
	}
}

func TestSummarizeNearestRank(t *testing.T) {
	var samples []time.Duration
	for i := 20; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}
	got := summarize(samples)
	if got.Count != 20 || got.P50 != 10*time.Millisecond || got.P95 != 19*time.Millisecond || got.Max != 20*time.Millisecond {
		t.Fatalf("summarize() = %+v", got)
	}
	if samples[0] != 20*time.Millisecond {
		t.Fatalf("summarize() reordered its input")
	}

	if empty := summarize(nil); empty.Count != 0 {
		t.Fatalf("summarize(nil) = %+v", empty)
	}
}

func TestSplitTexts(t *testing.T) {
	got, err := splitTexts(" a | |b ")
	if err != nil || len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitTexts() = %v, %v", got, err)
	}
	if _, err := splitTexts("| |"); err == nil {
		t.Fatalf("splitTexts(empty parts) expected error")
	}
	if def, _ := splitTexts(""); len(def) != len(defaultUtterances) {
		t.Fatalf("splitTexts(\"\") = %v, want defaults", def)
	}
}
