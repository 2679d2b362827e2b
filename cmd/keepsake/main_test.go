package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"keepsake/internal/kv/memory"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// cli runs keepsake against a bolt store in dir and returns stdout, stderr
// and the exit code.
func cli(t *testing.T, dir string, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-data-dir", dir, "-log-level", "error"}, args...)
	code := run(full, &stdout, &stderr, false)
	return stdout.String(), stderr.String(), code
}

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestRunPutGetAcrossInvocations(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	out, errOut, code := cli(t, dir, "put", "notes", `{"id":"a","text":"hello"}`, `{"id":"b","text":"world"}`)
	if code != 0 {
		t.Fatalf("put exit %d: %s", code, errOut)
	}
	if out != "a\nb\n" {
		t.Errorf("put output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "keepsake.db")); err != nil {
		t.Fatalf("db file: %v", err)
	}

	out, _, code = cli(t, dir, "get", "notes", "b")
	if code != 0 {
		t.Fatalf("get exit %d", code)
	}
	var doc map[string]any
	if err := gojson.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("get output %q: %v", out, err)
	}
	if doc["text"] != "world" {
		t.Errorf("got %v", doc)
	}

	out, _, _ = cli(t, dir, "count", "notes")
	if strings.TrimSpace(out) != "2" {
		t.Errorf("count: %q", out)
	}
}

func TestRunPutAssignsID(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	out, errOut, code := cli(t, dir, "put", "notes", `{"text":"no id"}`)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	id := strings.TrimSpace(out)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("generated id %q: %v", id, err)
	}
	if _, _, code := cli(t, dir, "get", "notes", id); code != 0 {
		t.Errorf("get generated id: exit %d", code)
	}
}

func TestRunPutRejectsBadDocuments(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	for _, raw := range []string{`{"id":7}`, `[1,2]`, `null`, `{broken`} {
		if _, _, code := cli(t, dir, "put", "notes", `{"id":"ok"}`, raw); code != 1 {
			t.Errorf("%s: exit %d, want 1", raw, code)
		}
	}
	out, _, _ := cli(t, dir, "count", "notes")
	if strings.TrimSpace(out) != "0" {
		t.Errorf("rejected batch left documents behind: %q", out)
	}
}

func TestRunGetMissing(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	cli(t, dir, "put", "notes", `{"id":"a"}`)

	out, errOut, code := cli(t, dir, "get", "notes", "a", "zz")
	if code != 3 {
		t.Fatalf("exit %d, want 3", code)
	}
	if !strings.Contains(out, `"a"`) {
		t.Errorf("found document not printed: %q", out)
	}
	if !strings.Contains(errOut, "not found: zz") {
		t.Errorf("stderr: %q", errOut)
	}
}

func TestRunListDelClear(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	cli(t, dir, "put", "notes", `{"id":"c"}`, `{"id":"a"}`, `{"id":"b"}`)

	out, _, _ := cli(t, dir, "list", "notes")
	var docs []map[string]any
	if err := gojson.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d["id"].(string))
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("list order: %v", ids)
	}

	if _, _, code := cli(t, dir, "del", "notes", "a", "missing"); code != 0 {
		t.Fatalf("del exit %d", code)
	}
	out, _, _ = cli(t, dir, "count", "notes")
	if strings.TrimSpace(out) != "2" {
		t.Errorf("count after del: %q", out)
	}

	if _, _, code := cli(t, dir, "clear", "notes"); code != 0 {
		t.Fatalf("clear exit %d", code)
	}
	out, _, _ = cli(t, dir, "list", "notes")
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("list after clear: %q", out)
	}
}

func TestRunSnapshotRestore(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	snapFile := filepath.Join(t.TempDir(), "notes.json")
	cli(t, dir, "put", "notes", `{"id":"a","n":1}`, `{"id":"b","n":2}`)

	if _, errOut, code := cli(t, dir, "snapshot", "notes", snapFile); code != 0 {
		t.Fatalf("snapshot exit %d: %s", code, errOut)
	}
	data, err := os.ReadFile(snapFile)
	if err != nil {
		t.Fatal(err)
	}
	var exported struct {
		Objects   []map[string]any `json:"objects"`
		CreatedAt string           `json:"created_at"`
	}
	if err := gojson.Unmarshal(data, &exported); err != nil {
		t.Fatal(err)
	}
	if len(exported.Objects) != 2 || exported.CreatedAt == "" {
		t.Fatalf("exported: %+v", exported)
	}

	cli(t, dir, "del", "notes", "a")
	cli(t, dir, "put", "notes", `{"id":"z"}`)
	out, errOut, code := cli(t, dir, "restore", "notes", snapFile)
	if code != 0 {
		t.Fatalf("restore exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "restored 2 documents") {
		t.Errorf("restore output: %q", out)
	}
	if _, _, code := cli(t, dir, "get", "notes", "z"); code != 3 {
		t.Error("document saved after the snapshot survived restore")
	}
	if _, _, code := cli(t, dir, "get", "notes", "a"); code != 0 {
		t.Error("restored document missing")
	}
}

func TestRunSnapshotToStdout(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	cli(t, dir, "put", "notes", `{"id":"a"}`)
	out, _, code := cli(t, dir, "snapshot", "notes")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.HasPrefix(out, `{"objects":[{"id":"a"}],"created_at":"`) {
		t.Errorf("compact snapshot: %q", out)
	}
}

func TestRunSlotCommands(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	if _, _, code := cli(t, dir, "slot-get", "prefs"); code != 3 {
		t.Errorf("empty slot exit %d, want 3", code)
	}
	if _, errOut, code := cli(t, dir, "slot-set", "prefs", `{"theme":"dark"}`); code != 0 {
		t.Fatalf("slot-set exit %d: %s", code, errOut)
	}
	out, _, code := cli(t, dir, "slot-get", "prefs")
	if code != 0 || strings.TrimSpace(out) != `{"theme":"dark"}` {
		t.Errorf("slot-get: %d %q", code, out)
	}
	if _, _, code := cli(t, dir, "slot-del", "prefs"); code != 0 {
		t.Fatalf("slot-del exit %d", code)
	}
	if _, _, code := cli(t, dir, "slot-get", "prefs"); code != 3 {
		t.Errorf("slot after delete: exit %d", code)
	}
}

func TestRunSQLiteBackend(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-data-dir", dir, "-backend", "sqlite", "put", "notes", `{"id":"a"}`}, &stdout, &stderr, false)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "keepsake.sqlite")); err != nil {
		t.Fatalf("sqlite file: %v", err)
	}
}

func TestRunConfigFile(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	content := "[store]\nbackend = \"sqlite\"\ndata_dir = \"" + filepath.ToSlash(dir) + "\"\nfile = \"custom.sqlite\"\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfgPath, "put", "notes", `{"id":"a"}`}, &stdout, &stderr, false); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "custom.sqlite")); err != nil {
		t.Fatalf("configured file: %v", err)
	}
}

func TestRunUsageErrors(t *testing.T) {
	isolateHome(t)
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr, false); code != 2 {
		t.Errorf("no command: exit %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "Commands:") {
		t.Errorf("usage lacks command list: %q", stderr.String())
	}

	stderr.Reset()
	if code := run([]string{"-backend", "tape", "list", "x"}, &stdout, &stderr, false); code != 1 {
		t.Errorf("bad backend: exit %d", code)
	}
	if !strings.Contains(stderr.String(), "unknown backend") {
		t.Errorf("stderr: %q", stderr.String())
	}

	stderr.Reset()
	if code := run([]string{"-backend", "memory", "list", "bad ns"}, &stdout, &stderr, false); code != 1 {
		t.Errorf("bad namespace: exit %d", code)
	}
	if code := run([]string{"-backend", "memory", "frobnicate"}, &stdout, &stderr, false); code != 1 {
		t.Errorf("unknown command: exit %d", code)
	}
}

func TestIndentedOutput(t *testing.T) {
	st := memory.New()
	reg := NewCommandRegistry()
	registerCommands(reg)

	var out bytes.Buffer
	ctx := CommandContext{Store: st, Out: &out}
	if err := reg.Dispatch([]string{"put", "notes", `{"id":"a","n":1}`}, ctx); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	ctx.Indent = true
	if err := reg.Dispatch([]string{"get", "notes", "a"}, ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "\n  \"id\": \"a\"") {
		t.Errorf("indented output: %q", out.String())
	}

	out.Reset()
	ctx.Indent = false
	if err := reg.Dispatch([]string{"get", "notes", "a"}, ctx); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != `{"id":"a","n":1}` {
		t.Errorf("compact output: %q", out.String())
	}
}
