package hostfunc

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Semver lets rule files compare versions, e.g. to require a version bump
// when a package manifest changes.
type Semver struct{}

func NewSemver() *Semver {
	return &Semver{}
}

// Valid reports whether v parses as a semantic version.
func (s *Semver) Valid(v string) bool {
	_, err := semver.NewVersion(v)
	return err == nil
}

// Compare returns -1, 0 or 1 as a is less than, equal to or greater than b.
func (s *Semver) Compare(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", a, err)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}

// Satisfies reports whether v meets constraint (e.g. ">= 1.2, < 2").
func (s *Semver) Satisfies(v, constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parse constraint %q: %w", constraint, err)
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", v, err)
	}
	return c.Check(ver), nil
}

// Bump returns v with the named part ("major", "minor" or "patch")
// incremented.
func (s *Semver) Bump(v, part string) (string, error) {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return "", fmt.Errorf("parse version %q: %w", v, err)
	}

	var next semver.Version
	switch part {
	case "major":
		next = ver.IncMajor()
	case "minor":
		next = ver.IncMinor()
	case "patch":
		next = ver.IncPatch()
	default:
		return "", fmt.Errorf("unknown version part %q", part)
	}
	return next.String(), nil
}
