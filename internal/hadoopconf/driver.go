package hadoopconf

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"provisioner/internal/apperrors"
	"provisioner/internal/process"
)

// Driver writes the cluster configuration and then runs the driver command.
type Driver struct {
	confDir string
	exec    process.Executor
}

// NewDriver creates a driver whose launches start from the Hadoop files in
// confDir. confDir itself is only read.
func NewDriver(confDir string, exec process.Executor) *Driver {
	return &Driver{confDir: confDir, exec: exec}
}

// ConfDir returns the base Hadoop configuration directory.
func (d *Driver) ConfDir() string {
	return d.confDir
}

// Launch runs argv against a private copy of the base configuration with
// conf written as its yarn-site.xml, and waits for it to exit. The copy is
// removed afterwards. A non-zero exit code is reported as SpawnFailed.
func (d *Driver) Launch(argv []string, env, conf map[string]string) error {
	dir, err := d.prepare(conf)
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	overlay := maps.Clone(env)
	if overlay == nil {
		overlay = make(map[string]string, 1)
	}
	overlay["YARN_CONF_DIR"] = dir

	code, err := d.exec.Run(argv, overlay)
	if err != nil {
		return err
	}
	if code != 0 {
		return apperrors.SpawnFailed("hadoopconf.launch", fmt.Errorf("h2odriver exited with code %d", code))
	}
	return nil
}

// prepare creates the per-launch directory: every top-level file of confDir
// except yarn-site.xml, plus conf rendered as yarn-site.xml.
func (d *Driver) prepare(conf map[string]string) (string, error) {
	entries, err := os.ReadDir(d.confDir)
	if err != nil {
		return "", apperrors.IOFailure("hadoopconf.prepare", err)
	}

	dir, err := os.MkdirTemp("", "yarn-conf-")
	if err != nil {
		return "", apperrors.IOFailure("hadoopconf.prepare", err)
	}

	for _, entry := range entries {
		if entry.Name() == FileName {
			continue
		}
		if err := copyRegular(filepath.Join(d.confDir, entry.Name()), filepath.Join(dir, entry.Name())); err != nil {
			os.RemoveAll(dir)
			return "", apperrors.IOFailure("hadoopconf.prepare", err)
		}
	}

	if err := Write(dir, conf); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

// copyRegular copies src to dst when src, after following links, is a
// regular file. Anything else is skipped.
func copyRegular(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
