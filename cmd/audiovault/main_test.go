package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audiovault/internal/catalog"
	"audiovault/internal/testsupport"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
storage_root = %q
log_dir = %q
catalog_path = %q
api_bind = "127.0.0.1:0"

[identity]
url = "http://127.0.0.1:1"
`, filepath.Join(base, "storage"), filepath.Join(base, "logs"), filepath.Join(base, "catalog.db"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("audiovault %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeTaggedMP3(t *testing.T, dir string) (string, []byte) {
	t.Helper()
	cover := testsupport.JPEG(t, 300, 300, color.RGBA{R: 90, G: 10, B: 160, A: 255})
	data := append(testsupport.ID3v2(3,
		testsupport.ID3Text("TIT2", "Night Drive"),
		testsupport.ID3Text("TPE1", "Kavinsky"),
		testsupport.ID3Picture("image/jpeg", 3, cover),
	), testsupport.MPEGFrames(20)...)
	path := filepath.Join(dir, "night drive.mp3")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write mp3: %v", err)
	}
	return path, data
}

func TestConfigInitWritesSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out := mustRunCLI(t, "config", "init", "--path", target)
	if !strings.Contains(out, target) {
		t.Fatalf("expected target path in output, got %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	mustRunCLI(t, "config", "init", "--path", target, "--overwrite")

	validated := mustRunCLI(t, "-c", target, "config", "validate")
	if !strings.Contains(validated, "Configuration valid") {
		t.Fatalf("unexpected validate output %q", validated)
	}
}

func TestIngestListUsageAndRemove(t *testing.T) {
	cfgPath := writeTestConfig(t)
	mp3, payload := writeTaggedMP3(t, t.TempDir())

	var stored []ingestedFile
	out := mustRunCLI(t, "-c", cfgPath, "ingest", "alice", "--email", "alice@example.com", "--json", mp3)
	if err := json.Unmarshal([]byte(out), &stored); err != nil {
		t.Fatalf("decode ingest output: %v\n%s", err, out)
	}
	if len(stored) != 1 || !strings.HasPrefix(stored[0].Name, "alice_") {
		t.Fatalf("unexpected ingest result %+v", stored)
	}
	if stored[0].Artist != "Kavinsky" || stored[0].Cover == "" {
		t.Fatalf("expected tags and cover, got %+v", stored[0])
	}

	var assets []catalog.Asset
	out = mustRunCLI(t, "-c", cfgPath, "ls", "alice", "--json")
	if err := json.Unmarshal([]byte(out), &assets); err != nil {
		t.Fatalf("decode ls output: %v\n%s", err, out)
	}
	if len(assets) != 1 || assets[0].Name != stored[0].Name || assets[0].Size != int64(len(payload)) {
		t.Fatalf("unexpected assets %+v", assets)
	}

	var usage []ownerUsage
	out = mustRunCLI(t, "-c", cfgPath, "usage", "alice", "--json")
	if err := json.Unmarshal([]byte(out), &usage); err != nil {
		t.Fatalf("decode usage output: %v\n%s", err, out)
	}
	if len(usage) != 1 || usage[0].Usage.Used != int64(len(payload)) || usage[0].Email != "alice@example.com" {
		t.Fatalf("unexpected usage %+v", usage)
	}

	out = mustRunCLI(t, "-c", cfgPath, "rm", "alice", stored[0].Name)
	if !strings.Contains(out, "removed "+stored[0].Name) || !strings.Contains(out, "removed "+stored[0].Cover) {
		t.Fatalf("expected audio and cover removal, got %q", out)
	}
	if out := mustRunCLI(t, "-c", cfgPath, "ls", "alice"); !strings.Contains(out, "No assets stored") {
		t.Fatalf("expected empty listing, got %q", out)
	}
	if _, err := runCLI(t, "-c", cfgPath, "rm", "alice", stored[0].Name); err == nil {
		t.Fatal("expected second removal to fail")
	}
}

func TestPurgeReportsEmptyOwner(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out := mustRunCLI(t, "-c", cfgPath, "purge", "nobody")
	if !strings.Contains(out, "No tracks found to delete") {
		t.Fatalf("unexpected purge output %q", out)
	}
}

func TestInspectShowsTagsAndCover(t *testing.T) {
	cfgPath := writeTestConfig(t)
	mp3, _ := writeTaggedMP3(t, t.TempDir())

	out := mustRunCLI(t, "-c", cfgPath, "inspect", mp3)
	for _, want := range []string{"Kavinsky", "Night Drive", "Cover: image/jpeg"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestQuotaSet(t *testing.T) {
	cfgPath := writeTestConfig(t)
	mustRunCLI(t, "-c", cfgPath, "quota", "set", "bob", "2GB")

	var usage []ownerUsage
	out := mustRunCLI(t, "-c", cfgPath, "usage", "--json")
	if err := json.Unmarshal([]byte(out), &usage); err != nil {
		t.Fatalf("decode usage output: %v\n%s", err, out)
	}
	if len(usage) != 1 || usage[0].Owner != "bob" || usage[0].Usage.Quota != 2<<30 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if _, err := runCLI(t, "-c", cfgPath, "quota", "set", "bob", "lots"); err == nil {
		t.Fatal("expected invalid size to fail")
	}
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"0":      0,
		"1024":   1024,
		"10KB":   10 << 10,
		"1.5 mb": 3 << 19,
		"2GB":    2 << 30,
		"1TB":    1 << 40,
		"512B":   512,
	}
	for in, want := range cases {
		got, err := parseSize(in)
		if err != nil || got != want {
			t.Fatalf("parseSize(%q) = %d, %v want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "-1", "ten"} {
		if _, err := parseSize(bad); err == nil {
			t.Fatalf("expected %q to fail", bad)
		}
	}
}

func TestDialAddress(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:7490": "127.0.0.1:7490",
		":7490":          "127.0.0.1:7490",
		"0.0.0.0:80":     "127.0.0.1:80",
		"[::]:80":        "127.0.0.1:80",
		"example:1":      "example:1",
	}
	for in, want := range cases {
		if got := dialAddress(in); got != want {
			t.Fatalf("dialAddress(%q) = %q want %q", in, got, want)
		}
	}
}
