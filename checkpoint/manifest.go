package checkpoint

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	currentKey     = "CURRENT"
	snapshotPrefix = "snapshots/"
	manifestPrefix = "manifests/"

	manifestFormatVersion = 1
)

// Manifest describes one saved checkpoint.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	Name          string    `json:"name"`
	Version       uint64    `json:"version"`
	CreatedAt     time.Time `json:"created_at"`

	// Snapshot is the blob name the searcher was serialized to.
	Snapshot     string `json:"snapshot"`
	SnapshotSize int64  `json:"snapshot_size"`

	Mode       string  `json:"mode"`
	References int     `json:"references"`
	Dimension  int     `json:"dimension"`
	Tau        float64 `json:"tau"`
	Alpha      float64 `json:"alpha"`
}

func snapshotKey(name string, version uint64) string {
	return fmt.Sprintf("%s%s-%06d.rann", snapshotPrefix, name, version)
}

func manifestKey(name string, version uint64) string {
	return fmt.Sprintf("%s%s-%06d.json", manifestPrefix, name, version)
}

// parseVersion extracts the version from a blob name of the form
// "<name>-<version><ext>". Keys belonging to other checkpoint names
// report false, including names that merely share a prefix.
func parseVersion(key, name, ext string) (uint64, bool) {
	base := path.Base(key)

	rest, ok := strings.CutPrefix(base, name+"-")
	if !ok {
		return 0, false
	}
	num, ok := strings.CutSuffix(rest, ext)
	if !ok || len(num) < 6 {
		return 0, false
	}

	v, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
