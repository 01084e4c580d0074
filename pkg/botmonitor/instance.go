package botmonitor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	coreconfig "github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
)

const instanceFile = ".server_id"

// ResolveInstanceID names this replica in its traces. Order: the configured
// id, the one saved under StateDir, the host name, and last a generated id
// that is saved for the next start.
func ResolveInstanceID(cfg coreconfig.MonitorConfig) string {
	if id := strings.TrimSpace(cfg.InstanceID); id != "" {
		return id
	}

	path := filepath.Join(cfg.StateDir, instanceFile)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	if host, err := os.Hostname(); err == nil && host != "localhost" {
		if clean := keySafe(host); clean != "" {
			return "chatbot-" + clean
		}
	}

	id := "chatbot-" + uuid.NewString()[:8]
	if err := os.MkdirAll(cfg.StateDir, 0o755); err == nil {
		err = os.WriteFile(path, []byte(id), 0o644)
		if err == nil {
			return id
		}
	}
	logrus.WithField("path", path).Warn("[BOT_MONITOR] could not save instance id, it will change on restart")
	return id
}

func keySafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, s)
}
