package hadoopconf

import (
	"errors"
	"maps"
	"os"
	"path/filepath"
	"provisioner/internal/apperrors"
	"slices"
	"strings"
	"sync"
	"testing"
)

type fakeExecutor struct {
	code int
	err  error

	argv         []string
	env          map[string]string
	confAtStart  string
	filesAtStart []string
}

func (f *fakeExecutor) Run(argv []string, env map[string]string) (int, error) {
	f.argv = argv
	f.env = env
	dir := env["YARN_CONF_DIR"]
	if data, err := os.ReadFile(filepath.Join(dir, FileName)); err == nil {
		f.confAtStart = string(data)
	}
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			f.filesAtStart = append(f.filesAtStart, e.Name())
		}
	}
	return f.code, f.err
}

func TestMarshal(t *testing.T) {
	t.Parallel()
	data, err := Marshal(map[string]string{"key2": "value2", "key1": "value1"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	out := string(data)
	if !strings.HasPrefix(out, "<?xml") {
		t.Errorf("Expected XML header, got:\n%s", out)
	}
	first := strings.Index(out, "<name>key1</name>")
	second := strings.Index(out, "<name>key2</name>")
	if first < 0 || second < 0 || first > second {
		t.Errorf("Expected sorted properties, got:\n%s", out)
	}
}

func TestMarshal_EscapesValues(t *testing.T) {
	t.Parallel()
	conf := map[string]string{"yarn.app.opts": "-Da=<b> & c"}
	data, err := Marshal(conf)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !maps.Equal(got, conf) {
		t.Errorf("Expected %v, got %v", conf, got)
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	conf := map[string]string{"key1": "value1", "key2": "value2"}

	if err := Write(dir, conf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !maps.Equal(got, conf) {
		t.Errorf("Expected %v, got %v", conf, got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only %s in dir, got %d entries", FileName, len(entries))
	}
}

func TestWrite_MissingDir(t *testing.T) {
	t.Parallel()
	err := Write(filepath.Join(t.TempDir(), "missing"), map[string]string{"a": "b"})
	if !errors.Is(err, apperrors.ErrIOFailure) {
		t.Errorf("Expected ErrIOFailure, got %v", err)
	}
}

func TestDriver_Launch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	exec := &fakeExecutor{}
	driver := NewDriver(dir, exec)

	err := driver.Launch([]string{"hadoop", "jar", "h2odriver.jar"}, map[string]string{"KRB5CCNAME": "/tmp/cc"}, map[string]string{"key1": "value1"})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	if !strings.Contains(exec.confAtStart, "<name>key1</name>") {
		t.Errorf("Expected conf to be written before the driver starts, got %q", exec.confAtStart)
	}
	if driver.ConfDir() != dir {
		t.Errorf("Expected ConfDir %s, got %s", dir, driver.ConfDir())
	}
	launchDir := exec.env["YARN_CONF_DIR"]
	if launchDir == "" || launchDir == dir {
		t.Errorf("Expected a per-launch YARN_CONF_DIR, got %q", launchDir)
	}
	if exec.env["KRB5CCNAME"] != "/tmp/cc" {
		t.Errorf("Expected caller env to be passed, got %v", exec.env)
	}
	if _, err := os.Stat(launchDir); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed after launch, got %v", launchDir, err)
	}
}

func TestDriver_LaunchCopiesBaseConf(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"core-site.xml": "<configuration/>",
		FileName:        "<configuration><property><name>base</name><value>1</value></property></configuration>",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	exec := &fakeExecutor{}
	if err := NewDriver(dir, exec).Launch([]string{"hadoop"}, nil, map[string]string{"key1": "value1"}); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	if !slices.Equal(exec.filesAtStart, []string{"core-site.xml", FileName}) {
		t.Errorf("Expected [core-site.xml %s], got %v", FileName, exec.filesAtStart)
	}
	if strings.Contains(exec.confAtStart, "<name>base</name>") || !strings.Contains(exec.confAtStart, "<name>key1</name>") {
		t.Errorf("Expected launch conf to replace the base yarn-site.xml, got %q", exec.confAtStart)
	}

	base, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(base), "<name>base</name>") {
		t.Errorf("Expected base yarn-site.xml to be left untouched, got %q", base)
	}
}

// blockingExecutor holds every run until release is closed, recording the
// yarn-site.xml each one saw.
type blockingExecutor struct {
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	confs map[string]string
}

func (b *blockingExecutor) Run(_ []string, env map[string]string) (int, error) {
	b.started <- struct{}{}
	<-b.release
	data, err := os.ReadFile(filepath.Join(env["YARN_CONF_DIR"], FileName))
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	b.confs[env["YARN_CONF_DIR"]] = string(data)
	b.mu.Unlock()
	return 0, nil
}

func TestDriver_ConcurrentLaunchesKeepTheirOwnConf(t *testing.T) {
	t.Parallel()
	exec := &blockingExecutor{
		started: make(chan struct{}),
		release: make(chan struct{}),
		confs:   make(map[string]string),
	}
	driver := NewDriver(t.TempDir(), exec)

	values := []string{"first", "second"}
	errs := make(chan error, len(values))
	for _, v := range values {
		go func() {
			errs <- driver.Launch([]string{"hadoop"}, nil, map[string]string{"owner": v})
		}()
	}
	for range values {
		<-exec.started
	}
	close(exec.release)
	for range values {
		if err := <-errs; err != nil {
			t.Fatalf("Launch failed: %v", err)
		}
	}

	if len(exec.confs) != len(values) {
		t.Fatalf("Expected %d distinct conf dirs, got %d", len(values), len(exec.confs))
	}
	seen := map[string]bool{}
	for dir, conf := range exec.confs {
		for _, v := range values {
			if strings.Contains(conf, "<value>"+v+"</value>") {
				seen[v] = true
			}
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be removed after launch, got %v", dir, err)
		}
	}
	if len(seen) != len(values) {
		t.Errorf("Expected each launch to see its own conf, got %v", exec.confs)
	}
}

func TestDriver_LaunchFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		exec     *fakeExecutor
		sentinel error
		msg      string
	}{
		{"non-zero exit", &fakeExecutor{code: 255}, apperrors.ErrSpawnFailed, "h2odriver exited with code 255"},
		{"spawn error", &fakeExecutor{err: apperrors.SpawnFailed("process.start", errors.New("no hadoop"))}, apperrors.ErrSpawnFailed, "no hadoop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			err := NewDriver(dir, tt.exec).Launch([]string{"hadoop"}, nil, nil)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("Expected %v, got %v", tt.sentinel, err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("Expected error containing %q, got %q", tt.msg, err.Error())
			}
		})
	}
}

func TestDriver_ConfWriteFailureSkipsLaunch(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	err := NewDriver(filepath.Join(t.TempDir(), "missing"), exec).Launch([]string{"hadoop"}, nil, map[string]string{"a": "b"})
	if !errors.Is(err, apperrors.ErrIOFailure) {
		t.Fatalf("Expected ErrIOFailure, got %v", err)
	}
	if exec.argv != nil {
		t.Error("Expected driver not to be started")
	}
}
