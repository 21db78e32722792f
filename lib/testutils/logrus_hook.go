// Package testutils holds helpers shared by the foxshot package tests.
package testutils

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SimpleLogrusHook implements the logrus.Hook interface and records every
// entry it sees so tests can assert on what was logged.
type SimpleLogrusHook struct {
	HookedLevels []logrus.Level
	mutex        sync.Mutex
	messageCache []logrus.Entry
}

// Levels just returns whatever was stored in the HookedLevels slice
func (smh *SimpleLogrusHook) Levels() []logrus.Level {
	return smh.HookedLevels
}

// Fire saves whatever message the logrus library passed in the cache
func (smh *SimpleLogrusHook) Fire(e *logrus.Entry) error {
	smh.mutex.Lock()
	defer smh.mutex.Unlock()
	smh.messageCache = append(smh.messageCache, *e)
	return nil
}

// Drain returns the currently stored messages and deletes them from the cache
func (smh *SimpleLogrusHook) Drain() []logrus.Entry {
	smh.mutex.Lock()
	defer smh.mutex.Unlock()
	res := smh.messageCache
	smh.messageCache = []logrus.Entry{}
	return res
}

// Lines drains the cache and returns the logged messages.
func (smh *SimpleLogrusHook) Lines() []string {
	entries := smh.Drain()
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = entry.Message
	}
	return lines
}

// Snapshot returns a copy of the stored entries without clearing them.
func (smh *SimpleLogrusHook) Snapshot() []logrus.Entry {
	smh.mutex.Lock()
	defer smh.mutex.Unlock()
	res := make([]logrus.Entry, len(smh.messageCache))
	copy(res, smh.messageCache)
	return res
}

// WaitFor polls the stored entries until one with the given category field
// contains substr, or timeout passes. Forwarded browser output is logged from
// background goroutines, hence the polling.
func (smh *SimpleLogrusHook) WaitFor(category, substr string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		for _, e := range smh.Snapshot() {
			if e.Data["category"] == category && strings.Contains(e.Message, substr) {
				return true
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

var _ logrus.Hook = &SimpleLogrusHook{}

// NewLogHook creates a new SimpleLogrusHook with the given levels and returns
// it. If no levels are specified, then logrus.AllLevels will be used.
func NewLogHook(levels ...logrus.Level) *SimpleLogrusHook {
	if len(levels) == 0 {
		levels = logrus.AllLevels
	}
	return &SimpleLogrusHook{HookedLevels: levels}
}

// NewLogger returns a logrus logger at debug level that writes nowhere except
// into the returned hook.
func NewLogger() (*logrus.Logger, *SimpleLogrusHook) {
	hook := NewLogHook()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(hook)
	return logger, hook
}

// LogContains is a helper function that checks the provided list of log entries
// for a message matching the provided level and contents.
func LogContains(logEntries []logrus.Entry, expLevel logrus.Level, expContents string) bool {
	for _, entry := range logEntries {
		if entry.Level == expLevel && strings.Contains(entry.Message, expContents) {
			return true
		}
	}
	return false
}
