package filesystem

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Iron-Ham/backlog/internal/model"
)

// Entity file names follow "<prefix>-<n>[.<n>...] - <Title>.md". The title
// part is optional when reading.
const idPattern = `(\d+(?:\.\d+)*)(?: - .*)?\.md$`

var (
	decisionFileRe  = regexp.MustCompile(`(?i)^decision-` + idPattern)
	documentFileRe  = regexp.MustCompile(`(?i)^doc-` + idPattern)
	milestoneFileRe = regexp.MustCompile(`(?i)^m-` + idPattern)

	unsafeFilenameChars = regexp.MustCompile(`[/\\:*?"<>|#%&{}$!'@+=\x60\s]+`)
)

// taskFileRes caches the compiled task pattern per lower-cased prefix.
var taskFileRes sync.Map

func taskFileRe(prefix string) *regexp.Regexp {
	key := strings.ToLower(prefix)
	if re, ok := taskFileRes.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	re, _ := taskFileRes.LoadOrStore(key, regexp.MustCompile(`(?i)^`+regexp.QuoteMeta(key)+`-`+idPattern))
	return re.(*regexp.Regexp)
}

// TaskIDFromFilename extracts the task id from a task file name. ok is
// false when the name does not follow the task naming convention.
func TaskIDFromFilename(name, prefix string) (string, bool) {
	if prefix == "" {
		prefix = model.DefaultTaskPrefix
	}
	m := taskFileRe(prefix).FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return strings.ToLower(prefix) + "-" + m[1], true
}

// DecisionIDFromFilename extracts the decision id from a file name.
func DecisionIDFromFilename(name string) (string, bool) {
	m := decisionFileRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return "decision-" + m[1], true
}

// DocumentIDFromFilename extracts the document id from a file name.
func DocumentIDFromFilename(name string) (string, bool) {
	m := documentFileRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return "doc-" + m[1], true
}

// MilestoneIDFromFilename extracts the milestone id from a file name.
func MilestoneIDFromFilename(name string) (string, bool) {
	m := milestoneFileRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return "m-" + m[1], true
}

// EntityFilename builds "<id> - <Sanitized-Title>.md".
func EntityFilename(id, title string) string {
	slug := strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(title), "-"), "-")
	if slug == "" {
		return fmt.Sprintf("%s.md", id)
	}
	return fmt.Sprintf("%s - %s.md", id, slug)
}
