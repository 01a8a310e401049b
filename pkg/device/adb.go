// Package device installs the recorded application on an Android device via ADB.
package device

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNoDevice is returned when adb lists no device in the "device" state.
var ErrNoDevice = errors.New("no connected devices found")

// Exec runs a command and returns its stdout and stderr.
type Exec func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Config configures an ADB client.
type Config struct {
	// Serial selects the device; empty auto-detects the first connected one.
	Serial string
	// Path to the adb binary; empty looks it up in PATH then ANDROID_HOME.
	Path string
	// Exec overrides process execution (tests).
	Exec Exec
	// PollInterval between get-state probes while waiting for the device.
	PollInterval time.Duration
}

// ADB runs adb commands against one device.
type ADB struct {
	serial   string
	path     string
	exec     Exec
	interval time.Duration
	log      *zap.Logger
}

// New resolves the adb binary and the device serial.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*ADB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &ADB{
		serial:   cfg.Serial,
		path:     cfg.Path,
		exec:     cfg.Exec,
		interval: cfg.PollInterval,
		log:      log,
	}
	if a.exec == nil {
		a.exec = execCommand
	}
	if a.interval <= 0 {
		a.interval = 500 * time.Millisecond
	}
	if a.path == "" {
		path, err := findADB(os.Getenv)
		if err != nil {
			return nil, err
		}
		a.path = path
	}
	if a.serial == "" {
		serial, err := a.detectSerial(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "no device specified and auto-detect failed")
		}
		a.serial = serial
	}
	return a, nil
}

// Serial returns the device serial.
func (a *ADB) Serial() string {
	return a.serial
}

func (a *ADB) detectSerial(ctx context.Context) (string, error) {
	out, err := a.run(ctx, false, "devices")
	if err != nil {
		return "", err
	}
	return parseDevices(out)
}

// parseDevices returns the first serial in the "device" state of `adb devices` output.
func parseDevices(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			return parts[0], nil
		}
	}
	return "", ErrNoDevice
}

// WaitForDevice polls get-state until the device reports "device" or timeout elapses.
func (a *ADB) WaitForDevice(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		if out, err := a.run(ctx, true, "get-state"); err == nil && strings.TrimSpace(out) == "device" {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Errorf("timeout waiting for device %s", a.serial)
		case <-ticker.C:
		}
	}
}

// IsInstalled reports whether pkg is installed on the device.
func (a *ADB) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	out, err := a.run(ctx, true, "shell", "pm", "list", "packages", pkg)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true, nil
		}
	}
	return false, nil
}

// InstallMultiple installs the APK splits of one application in a single session,
// replacing an existing install and granting runtime permissions.
func (a *ADB) InstallMultiple(ctx context.Context, apks []string) error {
	if len(apks) == 0 {
		return errors.New("no APK files to install")
	}
	args := append([]string{"install-multiple", "-r", "-g"}, apks...)
	a.log.Info("Installing APKs", zap.String("serial", a.serial), zap.Strings("apks", apks))
	out, err := a.run(ctx, true, args...)
	if err != nil {
		return err
	}
	if !strings.Contains(out, "Success") {
		return errors.Errorf("adb install-multiple: %s", strings.TrimSpace(out))
	}
	return nil
}

// run executes adb, scoped to the device serial when withSerial is set.
func (a *ADB) run(ctx context.Context, withSerial bool, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if withSerial && a.serial != "" {
		cmdArgs = append(cmdArgs, "-s", a.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	a.log.Debug("adb", zap.Strings("args", cmdArgs))
	stdout, stderr, err := a.exec(ctx, a.path, cmdArgs...)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = strings.TrimSpace(string(stdout))
		}
		return "", errors.Wrapf(err, "adb %s: %s", strings.Join(args, " "), msg)
	}
	return string(stdout), nil
}

// findADB locates adb in PATH, then under ANDROID_HOME or ANDROID_SDK_ROOT.
func findADB(getenv func(string) string) (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	for _, key := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		root := getenv(key)
		if root == "" {
			continue
		}
		path := filepath.Join(root, "platform-tools", "adb")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.New("adb not found in PATH or ANDROID_HOME; ensure Android SDK platform-tools are installed")
}

// SplitAPKs lists the .apk files of dir, base.apk first then by name.
func SplitAPKs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read split APKs directory %s", dir)
	}
	var apks []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".apk") {
			apks = append(apks, entry.Name())
		}
	}
	if len(apks) == 0 {
		return nil, errors.Errorf("no APK files found in %s", dir)
	}
	sort.Slice(apks, func(i, j int) bool {
		bi, bj := strings.EqualFold(apks[i], "base.apk"), strings.EqualFold(apks[j], "base.apk")
		if bi != bj {
			return bi
		}
		return apks[i] < apks[j]
	})
	for i, name := range apks {
		apks[i] = filepath.Join(dir, name)
	}
	return apks, nil
}

// InstallOptions configures Install.
type InstallOptions struct {
	Package string
	Dir     string
	// Force reinstalls when the package is already present.
	Force       bool
	WaitTimeout time.Duration
}

// InstallResult describes what Install did.
type InstallResult struct {
	Serial    string
	APKs      []string
	Skipped   bool
	Installed bool
}

// Install waits for the device, installs the split APKs unless the package is
// already present, then verifies the package is listed.
func (a *ADB) Install(ctx context.Context, opts InstallOptions) (*InstallResult, error) {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	res := &InstallResult{Serial: a.serial}
	if err := a.WaitForDevice(ctx, opts.WaitTimeout); err != nil {
		return res, err
	}

	if !opts.Force {
		installed, err := a.IsInstalled(ctx, opts.Package)
		if err != nil {
			return res, err
		}
		if installed {
			a.log.Info("Package already installed", zap.String("package", opts.Package))
			res.Skipped = true
			res.Installed = true
			return res, nil
		}
	}

	apks, err := SplitAPKs(opts.Dir)
	if err != nil {
		return res, err
	}
	res.APKs = apks
	if err := a.InstallMultiple(ctx, apks); err != nil {
		return res, err
	}

	installed, err := a.IsInstalled(ctx, opts.Package)
	if err != nil {
		return res, err
	}
	if !installed {
		return res, errors.Errorf("package %s not listed after install", opts.Package)
	}
	res.Installed = true
	return res, nil
}
