// Package version implements the "major.minor" numbering shared by project
// versions and schedule versions.
package version

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/zulandar/planyard/internal/perrors"
)

// Version is a two-part version number. The zero value is not a valid
// version; lineages start at Initial.
type Version struct {
	Major int
	Minor int
}

// Initial is the first version of every lineage.
var Initial = Version{Major: 1, Minor: 0}

// Parse reads a "major.minor" string. Both parts must be non-negative
// integers.
func Parse(s string) (Version, error) {
	major, minor, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, perrors.New(perrors.ErrDataCorruption, "version: malformed %q", s)
	}
	ma, err := strconv.Atoi(major)
	if err != nil || ma < 0 {
		return Version{}, perrors.New(perrors.ErrDataCorruption, "version: malformed major in %q", s)
	}
	mi, err := strconv.Atoi(minor)
	if err != nil || mi < 0 {
		return Version{}, perrors.New(perrors.ErrDataCorruption, "version: malformed minor in %q", s)
	}
	return Version{Major: ma, Minor: mi}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Next returns the successor version. Only the minor part advances; the
// major part never rolls over and the minor part never resets.
func (v Version) Next() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// Compare returns -1, 0 or 1 ordering by major, then minor.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		if v.Major < o.Major {
			return -1
		}
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

// Less reports whether v orders before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// IsZero reports whether v is the unset zero value.
func (v Version) IsZero() bool { return v == Version{} }

// Max returns the greatest version in vs, or false when vs is empty.
func Max(vs []Version) (Version, bool) {
	if len(vs) == 0 {
		return Version{}, false
	}
	best := vs[0]
	for _, v := range vs[1:] {
		if best.Less(v) {
			best = v
		}
	}
	return best, true
}

// GormDataType stores versions in a plain string column.
func (Version) GormDataType() string { return "string" }

// Value stores the version as its "major.minor" text.
func (v Version) Value() (driver.Value, error) {
	return v.String(), nil
}

// Scan reads a stored "major.minor" string.
func (v *Version) Scan(src any) error {
	var s string
	switch t := src.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case nil:
		return perrors.New(perrors.ErrDataCorruption, "version: null version")
	default:
		return perrors.New(perrors.ErrDataCorruption, "version: unsupported type %T", src)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalText renders the version for JSON and YAML.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
