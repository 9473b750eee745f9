// Package report renders session rosters for download.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"pathak/internal/attendance"
)

var rosterHeader = []string{"session", "date", "fullname", "email", "marked_at", "source"}

// WriteRoster writes one CSV row per attendee after a header row.
func WriteRoster(w io.Writer, sess attendance.Session, attendees []attendance.Attendee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rosterHeader); err != nil {
		return err
	}
	for _, a := range attendees {
		row := []string{
			sess.Title,
			sess.Date(),
			a.FullName,
			a.Email,
			a.MarkedAt.UTC().Format(time.RFC3339),
			string(a.Source),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename is a download name such as "attendance_evening-practice_2024-03-01.csv".
func Filename(sess attendance.Session) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, strings.TrimSpace(sess.Title))
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "session"
	}
	return fmt.Sprintf("attendance_%s_%s.csv", slug, sess.Date())
}
