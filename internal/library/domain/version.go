package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// InitialVersion is assigned to every newly created prompt.
const InitialVersion = "v1.0.0"

// Each version component rolls over at this value, like an odometer.
const versionBase = 10

// NextVersion bumps the patch component of a vMAJOR.MINOR.PATCH string.
// Patch rolls into minor at 10 and minor rolls into major at 10, so
// v1.0.9 -> v1.1.0 and v1.9.9 -> v2.0.0. Unparseable input is treated as
// InitialVersion.
func NextVersion(current string) string {
	major, minor, patch, ok := ParseVersion(current)
	if !ok {
		major, minor, patch, _ = ParseVersion(InitialVersion)
	}

	patch++
	if patch >= versionBase {
		patch = 0
		minor++
	}
	if minor >= versionBase {
		minor = 0
		major++
	}
	return FormatVersion(major, minor, patch)
}

// ParseVersion splits "vX.Y.Z" (the leading v is optional) into its components.
func ParseVersion(v string) (major, minor, patch int, ok bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], true
}

func FormatVersion(major, minor, patch int) string {
	return fmt.Sprintf("v%d.%d.%d", major, minor, patch)
}

// NormalizeVersion returns v in canonical form, or InitialVersion when v is not a version.
func NormalizeVersion(v string) string {
	major, minor, patch, ok := ParseVersion(v)
	if !ok {
		return InitialVersion
	}
	return FormatVersion(major, minor, patch)
}

// CompareVersions orders two version strings numerically. Unparseable versions sort first.
func CompareVersions(a, b string) int {
	am, an, ap, aok := ParseVersion(a)
	bm, bn, bp, bok := ParseVersion(b)
	switch {
	case !aok && !bok:
		return strings.Compare(a, b)
	case !aok:
		return -1
	case !bok:
		return 1
	}
	for _, d := range [][2]int{{am, bm}, {an, bn}, {ap, bp}} {
		if d[0] < d[1] {
			return -1
		}
		if d[0] > d[1] {
			return 1
		}
	}
	return 0
}
