// Package remote resolves GitHub repositories for analysis: URL parsing,
// repository metadata and cached shallow clones.
package remote

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned for anything that is not a safe GitHub
// repository reference.
var ErrInvalidURL = errors.New("invalid GitHub URL")

const namePattern = `[a-zA-Z0-9](?:[a-zA-Z0-9\-_\.]*[a-zA-Z0-9])?`

var (
	httpsURL = regexp.MustCompile(`^https://github\.com/(` + namePattern + `)/(` + namePattern + `)(?:\.git)?/?$`)
	sshURL   = regexp.MustCompile(`^git@github\.com:(` + namePattern + `)/(` + namePattern + `)(?:\.git)?$`)
	shortRef = regexp.MustCompile(`^(` + namePattern + `)/(` + namePattern + `)$`)
)

var forbiddenNames = map[string]bool{
	".git":           true,
	".gitignore":     true,
	".gitmodules":    true,
	".gitattributes": true,
}

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"repo"`
}

// FullName is owner/name.
func (r Repo) FullName() string { return r.Owner + "/" + r.Name }

// CloneURL is the https clone address.
func (r Repo) CloneURL() string { return "https://github.com/" + r.FullName() + ".git" }

// ParseURL accepts https://github.com/o/r[.git], git@github.com:o/r[.git]
// and o/r.
func ParseURL(raw string) (Repo, error) {
	s := strings.TrimSpace(raw)
	for _, re := range []*regexp.Regexp{httpsURL, sshURL, shortRef} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		owner, name := m[1], m[2]
		if re != shortRef {
			if trimmed, ok := strings.CutSuffix(name, ".git"); ok && trimmed != "" && ValidName(trimmed) {
				name = trimmed
			}
		}
		if ValidName(owner) && ValidName(name) {
			return Repo{Owner: owner, Name: name}, nil
		}
	}
	return Repo{}, fmt.Errorf("%w: %s", ErrInvalidURL, raw)
}

// ValidName reports whether name is a safe owner or repository name.
func ValidName(name string) bool {
	switch {
	case name == "" || len(name) > 100:
		return false
	case name == "." || name == "..":
		return false
	case strings.HasPrefix(name, ".") || strings.HasSuffix(name, "."):
		return false
	case strings.Contains(name, ".."):
		return false
	case strings.ContainsAny(name, `/\%`):
		return false
	case forbiddenNames[name]:
		return false
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c >= 0x80 || c < 0x20 || c == 0x7f {
			return false
		}
	}
	return isAlnum(name[0]) && isAlnum(name[len(name)-1])
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// CacheKey maps a URL to a directory name: every byte other than ASCII
// letters, digits, '-' and '_' becomes '_'.
func CacheKey(url string) string {
	b := []byte(url)
	for i, c := range b {
		if !isAlnum(c) && c != '-' && c != '_' {
			b[i] = '_'
		}
	}
	return string(b)
}
