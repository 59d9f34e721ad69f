package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// CreateTestFile writes content to dir/name, creating subdirectories as needed
func CreateTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create test directory: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// CreateTestFileWithSize writes size pseudo-random bytes to dir/name.
// The content depends only on name, so two files created with the same
// name and size hash identically.
func CreateTestFileWithSize(t *testing.T, dir, name string, size int64) string {
	t.Helper()

	var seed int64
	for _, c := range name {
		seed = seed*31 + int64(c)
	}
	rng := rand.New(rand.NewSource(seed))

	content := make([]byte, size)
	rng.Read(content)
	return CreateTestFile(t, dir, name, content)
}

// AppendToFile appends data to an existing file
func AppendToFile(t *testing.T, path string, data []byte) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open test file for append: %v", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		t.Fatalf("failed to append to test file: %v", err)
	}
}

// StartGrowing simulates a copy in progress: it appends chunk to path every
// interval until the returned stop function is called. stop waits for the
// writer to exit and is safe to call more than once.
func StartGrowing(t *testing.T, path string, chunk []byte, interval time.Duration) (stop func()) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open growing file: %v", err)
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer f.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				f.Write(chunk)
			}
		}
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() { close(done) })
		<-exited
	}
	t.Cleanup(stop)
	return stop
}

// AssertEventually polls condition every 10ms and fails the test if it is
// still false after timeout
func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, what string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", timeout, what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// FileExists reports whether path exists on disk
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
