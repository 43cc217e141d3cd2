package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Allowlist holds content patterns that are never treated as secrets.
//
// The file format is the Gitleaks one:
//
//	[allowlist]
//	regexes = ['''example-token-\d+''']
//	stopwords = ["dummy"]
type Allowlist struct {
	Regexes   []string
	StopWords []string
}

// LoadAllowlist reads path. A missing file yields an empty allowlist.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return &Allowlist{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Allowlist{}, nil
		}
		return nil, fmt.Errorf("stat allowlist: %w", err)
	}

	var file struct {
		Allowlist struct {
			Regexes   []string
			StopWords []string
		}
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: %q in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}

	return &Allowlist{
		Regexes:   file.Allowlist.Regexes,
		StopWords: file.Allowlist.StopWords,
	}, nil
}

// empty reports whether the allowlist adds nothing.
func (a *Allowlist) empty() bool {
	return a == nil || (len(a.Regexes) == 0 && len(a.StopWords) == 0)
}

// apply appends a as a global allowlist to cfg. Patterns were validated by
// LoadAllowlist.
func (a *Allowlist) apply(cfg *gitleaksConfig.Config) {
	if a.empty() {
		return
	}
	global := &gitleaksConfig.Allowlist{
		Description: "cortex user allowlist",
		StopWords:   a.StopWords,
	}
	for _, pattern := range a.Regexes {
		re := regexp.MustCompile(pattern)
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, global)
}
