package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/config"
)

const daemonBinary = "polyglotd"

var httpClient = &http.Client{Timeout: 10 * time.Second}

// cmdStart starts the daemon in the background
func cmdStart(out io.Writer) error {
	if isRunning() {
		fmt.Fprintln(out, "✓ Daemon is already running")
		return nil
	}

	dir, err := config.EnsurePolyglotDir()
	if err != nil {
		return fmt.Errorf("setup polyglot directory: %w", err)
	}

	binary, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(binary)
	cmd.Dir = dir
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Fprint(out, "Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning() {
			fmt.Fprintln(out, " ✓")
			fmt.Fprintf(out, "Daemon running at %s\n", daemonAddr)
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return errors.New("daemon failed to start (check logs with 'polyglot logs')")
}

// cmdStop sends SIGTERM to the daemon and waits for it to drain
func cmdStop(out io.Writer) error {
	if !isRunning() {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	dir, err := config.PolyglotDir()
	if err != nil {
		return err
	}
	pid, err := readPID(filepath.Join(dir, pidFile))
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Fprint(out, "Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	// shutdown drains in-flight tutor replies
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning() {
			fmt.Fprintln(out, " ✓")
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return errors.New("daemon did not stop gracefully")
}

type statusResponse struct {
	Status          string   `json:"status"`
	Version         string   `json:"version"`
	UptimeSeconds   int      `json:"uptime_seconds"`
	LLMProviders    []string `json:"llm_providers"`
	DefaultProvider string   `json:"default_provider"`
	Languages       int      `json:"languages"`
	Sessions        int      `json:"sessions"`
	Storage         string   `json:"storage"`
	Events          string   `json:"events"`
}

// cmdStatus shows daemon status
func cmdStatus(out io.Writer) error {
	if !isRunning() {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	var status statusResponse
	if err := getJSON("/v1/status", &status); err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	fmt.Fprintf(out, "Status:    %s\n", status.Status)
	fmt.Fprintf(out, "Version:   %s\n", status.Version)
	fmt.Fprintf(out, "Uptime:    %s\n", time.Duration(status.UptimeSeconds)*time.Second)
	fmt.Fprintf(out, "Providers: %s (default: %s)\n", strings.Join(status.LLMProviders, ", "), status.DefaultProvider)
	fmt.Fprintf(out, "Languages: %d\n", status.Languages)
	fmt.Fprintf(out, "Sessions:  %d\n", status.Sessions)
	fmt.Fprintf(out, "Storage:   %s\n", status.Storage)
	fmt.Fprintf(out, "Events:    %s\n", status.Events)
	fmt.Fprintf(out, "Address:   %s\n", daemonAddr)
	return nil
}

// cmdLogs prints the tail of the daemon log
func cmdLogs(out io.Writer) error {
	dir, err := config.PolyglotDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(dir, "logs", "polyglotd.log")
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No log file found. Start the daemon first.")
		return nil
	}
	return tailFile(logPath, 4096, out)
}

// tailFile writes the complete lines found in the last size bytes of path
func tailFile(path string, size int64, out io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	offset := info.Size() - size
	if offset < 0 {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	if offset > 0 {
		// partial first line
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	return scanner.Err()
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID: %w", err)
	}
	return pid, nil
}

// isRunning checks the daemon's health endpoint
func isRunning() bool {
	resp, err := httpClient.Get(daemonAddr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// getJSON decodes a daemon response, surfacing the error body on failure
func getJSON(path string, v any) error {
	resp, err := httpClient.Get(daemonAddr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			return fmt.Errorf("%s (status %d)", body.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// findDaemonBinary locates polyglotd on PATH, next to this binary, or in a build tree
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath(daemonBinary); err == nil {
		return path, nil
	}

	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), daemonBinary)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{
		"/usr/local/bin/" + daemonBinary,
		"./" + daemonBinary,
		"./cmd/polyglotd/" + daemonBinary,
	} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s binary not found (build with 'go build ./cmd/polyglotd')", daemonBinary)
}
