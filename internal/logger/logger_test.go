package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	prev := L()
	Set(zap.New(core))
	t.Cleanup(func() { Set(prev) })
	return logs
}

func TestInfo_Success_Warn_Error_Tagged(t *testing.T) {
	logs := observe(t)

	Info("TAG", "info message")
	Success("TAG", "success message")
	Warn("TAG", "warn message")
	Error("TAG", "error message")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	for _, e := range entries {
		if got := e.ContextMap()["tag"]; got != "TAG" {
			t.Errorf("entry %q tag = %v, want TAG", e.Message, got)
		}
	}
	if entries[2].Level != zap.WarnLevel {
		t.Errorf("Warn level = %v", entries[2].Level)
	}
	if entries[3].Level != zap.ErrorLevel {
		t.Errorf("Error level = %v", entries[3].Level)
	}
	if ok := entries[1].ContextMap()["ok"]; ok != true {
		t.Errorf("Success ok field = %v, want true", ok)
	}
}

func TestBanner_DefaultsVersion(t *testing.T) {
	logs := observe(t)
	Banner("")
	Banner("v1.0.0")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if v := entries[0].ContextMap()["version"]; v != "dev" {
		t.Errorf("Banner(\"\") version = %v, want dev", v)
	}
	if v := entries[1].ContextMap()["version"]; v != "v1.0.0" {
		t.Errorf("Banner version = %v, want v1.0.0", v)
	}
}

func TestSectionStatsServer(t *testing.T) {
	logs := observe(t)
	Section("Test")
	Stats("images", 42)
	Server("127.0.0.1:1")

	if n := logs.FilterField(zap.Any("value", 42)).Len(); n != 1 {
		t.Errorf("Stats entries = %d, want 1", n)
	}
	if n := logs.FilterField(zap.String("addr", "http://127.0.0.1:1")).Len(); n != 1 {
		t.Errorf("Server entries = %d, want 1", n)
	}
}

func TestBuild_RejectsBadInput(t *testing.T) {
	if _, err := build("loud", "text"); err == nil {
		t.Error("build with unknown level should fail")
	}
	if _, err := build("info", "xml"); err == nil {
		t.Error("build with unknown format should fail")
	}
	if _, err := build("debug", "json"); err != nil {
		t.Errorf("build(debug, json): %v", err)
	}
}
