package hardware

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// perCPUPath matches .../policyN/... and .../cpuN/... control files.
var perCPUPath = regexp.MustCompile(`^(.*/)(policy|cpu)(\d+)(/.+)$`)

// ExpandPerCPU returns every numeric sibling of a per-policy or per-core
// control file that exists on disk, ordered by index. Paths that do not look
// per-CPU, or whose siblings cannot be listed, come back unchanged.
func ExpandPerCPU(path string) []string {
	m := perCPUPath.FindStringSubmatch(path)
	if m == nil {
		return []string{path}
	}
	parent, prefix, suffix := m[1], m[2], m[4]

	entries, err := os.ReadDir(parent)
	if err != nil {
		return []string{path}
	}

	type sibling struct {
		idx  int
		path string
	}
	var found []sibling
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		idx, err := strconv.Atoi(name[len(prefix):])
		if err != nil || idx < 0 {
			continue
		}
		p := filepath.Join(parent, name) + suffix
		if _, err := os.Stat(p); err != nil {
			continue
		}
		found = append(found, sibling{idx: idx, path: p})
	}
	if len(found) == 0 {
		return []string{path}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].idx < found[j].idx })
	out := make([]string, len(found))
	for i, s := range found {
		out[i] = s.path
	}
	return out
}
