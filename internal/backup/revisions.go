package backup

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Instance folders are named <date-time>-user_<N>, optionally prefixed by
// "<package>@" in the flat layout. Older versions add milliseconds.
var instanceName = regexp.MustCompile(`(?:^|@)(\d{4}-\d\d-\d\d-\d\d-\d\d-\d\d)(?:-(\d{3}))?-user_\d+$`)

const instanceTimeLayout = "2006-01-02-15-04-05"

// RevisionPolicy limits which backup revisions get decrypted. Revisions are
// grouped by parent directory, which holds one app's backups.
type RevisionPolicy struct {
	Count int // keep the N newest per parent
	Days  int // ignore revisions older than this
}

func (p *RevisionPolicy) IsEnabled() bool {
	return p.Days > 0 || p.Count > 0
}

// BackupTime is the time encoded in the folder name, or the directory
// modification time when the name carries none.
func BackupTime(f Folder) time.Time {
	m := instanceName.FindStringSubmatch(filepath.Base(f.Path))
	if m == nil {
		return f.ModTime
	}
	t, err := time.ParseInLocation(instanceTimeLayout, m[1], time.Local)
	if err != nil {
		return f.ModTime
	}
	if ms, err := strconv.Atoi(m[2]); err == nil {
		t = t.Add(time.Duration(ms) * time.Millisecond)
	}
	return t
}

// SelectRevisions splits folders into those to decrypt and those excluded by
// the policy. Both results keep the input order.
func SelectRevisions(folders []Folder, policy RevisionPolicy, now time.Time) (selected, excluded []Folder) {
	if !policy.IsEnabled() {
		return folders, nil
	}

	drop := make(map[string]bool)

	groups := make(map[string][]Folder)
	for _, f := range folders {
		parent := filepath.Dir(filepath.Clean(f.Path))
		groups[parent] = append(groups[parent], f)
	}

	for _, group := range groups {
		// newest first
		sort.SliceStable(group, func(i, j int) bool {
			return BackupTime(group[i]).After(BackupTime(group[j]))
		})

		for i, f := range group {
			if policy.Count > 0 && i >= policy.Count {
				drop[f.Path] = true
				continue
			}
			if policy.Days > 0 {
				maxAge := time.Duration(policy.Days) * 24 * time.Hour
				if now.Sub(BackupTime(f)) > maxAge {
					drop[f.Path] = true
				}
			}
		}
	}

	for _, f := range folders {
		if drop[f.Path] {
			excluded = append(excluded, f)
		} else {
			selected = append(selected, f)
		}
	}
	return selected, excluded
}
