// Package featureflags evaluates FEATURE_FLAGS, a comma-separated list of
// name=value pairs such as "comment_moderation=on,live_notifications=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags read by the application.
const (
	// CommentModeration queues comments by non-staff authors for approval.
	CommentModeration = "comment_moderation"
	// LiveNotifications pushes notifications over websocket in addition to storing them.
	LiveNotifications = "live_notifications"
)

type ruleKind int

const (
	ruleOff ruleKind = iota
	ruleOn
	rulePercent
)

type rule struct {
	kind ruleKind
	pct  int
	raw  string
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{kind: ruleOn, raw: value}, true
	case "off", "false", "0":
		return rule{kind: ruleOff, raw: value}, true
	}
	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil {
			return rule{}, false
		}
		switch {
		case pct <= 0:
			return rule{kind: ruleOff, raw: value}, true
		case pct >= 100:
			return rule{kind: ruleOn, raw: value}, true
		}
		return rule{kind: rulePercent, pct: pct, raw: value}, true
	}
	return rule{}, false
}

// Manager holds parsed flags. A nil Manager has every flag off.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw; malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			out[key] = r
		}
	}
	return &Manager{rules: out}
}

// Enabled reports whether name is on for userID. Percentage rollouts are
// deterministic per (flag, user) and never enable for anonymous callers.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	switch r.kind {
	case ruleOn:
		return true
	case rulePercent:
		return userID != 0 && rolloutBucket(name, userID) < r.pct
	}
	return false
}

// Names lists configured flags in order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.rules))
	for k := range m.rules {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Raw returns the configured value of each flag.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
