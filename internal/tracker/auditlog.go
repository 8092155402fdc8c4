package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AuditLog appends decision lines to two per-day files: "all" gets every
// snapshot, "action" only the lines where the strategy acted. Files are
// opened per write; at 1 Hz that is cheap and survives rotation by date
// with no bookkeeping.
type AuditLog struct {
	dir string
	now func() time.Time
}

func NewAuditLog(dir string) *AuditLog {
	return &AuditLog{dir: dir, now: time.Now}
}

func (a *AuditLog) fileName(unit string, t time.Time) string {
	return filepath.Join(a.dir, fmt.Sprintf("%s_%s.log", unit, t.Format("2006-01-02")))
}

// Append writes one line to the daily "all" log.
func (a *AuditLog) Append(line string) error {
	return a.write("all", line)
}

// AppendAction writes one line to the daily "action" log.
func (a *AuditLog) AppendAction(line string) error {
	return a.write("action", line)
}

func (a *AuditLog) write(unit, line string) error {
	if a.dir != "" {
		if err := os.MkdirAll(a.dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(a.fileName(unit, a.now()), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}
