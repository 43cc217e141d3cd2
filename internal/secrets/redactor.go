package secrets

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cortex/internal/config"
)

// Finding describes one redacted secret. The secret itself is never kept.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"`
}

// Result is redacted text plus what was removed.
type Result struct {
	Text     string    `json:"-"`
	Findings []Finding `json:"findings,omitempty"`
}

// Count is the number of secrets removed.
func (r Result) Count() int {
	return len(r.Findings)
}

// Redactor replaces secrets in text with [REDACTED:<rule>] markers.
type Redactor struct {
	enabled  bool
	path     string
	logger   *zap.Logger
	mu       sync.Mutex
	detector *detect.Detector
}

// NewRedactor builds the Gitleaks detector with the default rule set plus
// the allowlist at cfg.AllowlistPath. A disabled config returns a
// pass-through redactor.
func NewRedactor(cfg config.SecretsConfig, logger *zap.Logger) (*Redactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Redactor{enabled: cfg.Enabled, path: cfg.AllowlistPath, logger: logger}
	if !cfg.Enabled {
		return r, nil
	}

	detector, err := newDetector(cfg.AllowlistPath)
	if err != nil {
		return nil, err
	}
	r.detector = detector
	return r, nil
}

func newDetector(allowlistPath string) (*detect.Detector, error) {
	allowlist, err := LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, fmt.Errorf("loading allowlist: %w", err)
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating detector: %w", err)
	}
	allowlist.apply(&detector.Config)
	return detector, nil
}

// Reload rebuilds the detector from the allowlist file. On error the
// current detector stays in place.
func (r *Redactor) Reload() error {
	if !r.Enabled() {
		return nil
	}
	detector, err := newDetector(r.path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.detector = detector
	r.mu.Unlock()
	return nil
}

// Enabled reports whether text is scanned at all.
func (r *Redactor) Enabled() bool {
	return r != nil && r.enabled
}

// Redact scans text and replaces every detected secret.
func (r *Redactor) Redact(text string) Result {
	if !r.Enabled() || text == "" {
		return Result{Text: text}
	}

	// The detector keeps per-scan state and is not safe for concurrent use.
	r.mu.Lock()
	found := r.detector.DetectString(text)
	r.mu.Unlock()

	matches := make([]match, 0, len(found))
	for _, f := range found {
		matches = append(matches, match{
			Finding: Finding{RuleID: f.RuleID, Description: f.Description, Line: f.StartLine},
			secret:  f.Secret,
		})
	}

	res := replace(text, matches)
	if res.Count() > 0 {
		rules := make([]string, 0, res.Count())
		for _, f := range res.Findings {
			rules = append(rules, f.RuleID)
		}
		r.logger.Info("redacted secrets from thought", zap.Int("count", res.Count()), zap.Strings("rules", rules))
	}
	return res
}

type match struct {
	Finding
	secret string
}

// replace substitutes each secret occurrence with its marker. Longer
// secrets go first so a secret containing another is replaced whole.
func replace(text string, matches []match) Result {
	sorted := make([]match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].secret) > len(sorted[j].secret)
	})

	res := Result{Text: text}
	for _, m := range sorted {
		if m.secret == "" || !strings.Contains(res.Text, m.secret) {
			continue
		}
		res.Text = strings.ReplaceAll(res.Text, m.secret, "[REDACTED:"+m.RuleID+"]")
		res.Findings = append(res.Findings, m.Finding)
	}
	return res
}
