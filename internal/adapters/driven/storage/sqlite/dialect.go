package sqlite

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

// The canonical migration catalog is written in the networked
// (PostgreSQL) dialect. This file translates scripts and bind values
// so callers never branch on backend type.

var (
	placeholderRe = regexp.MustCompile(`\$\d+`)
	nowRe         = regexp.MustCompile(`(?i)\bNOW\(\)`)
	boolTypeRe    = regexp.MustCompile(`(?i)\bBOOLEAN\b`)
	timestampRe   = regexp.MustCompile(`(?i)\bTIMESTAMPTZ\b`)
	bigintRe      = regexp.MustCompile(`(?i)\bBIGINT\b`)
	trueRe        = regexp.MustCompile(`(?i)\bTRUE\b`)
	falseRe       = regexp.MustCompile(`(?i)\bFALSE\b`)
	serialRe      = regexp.MustCompile(`(?i)\bBIGSERIAL\b`)
)

// translateScript rewrites one canonical SQL script into the SQLite
// dialect: positional placeholders, engine-native now, 0/1 booleans,
// and text-affinity timestamps.
func translateScript(script string) string {
	out := placeholderRe.ReplaceAllString(script, "?")
	out = nowRe.ReplaceAllString(out, "CURRENT_TIMESTAMP")
	out = timestampRe.ReplaceAllString(out, "TEXT")
	out = boolTypeRe.ReplaceAllString(out, "INTEGER")
	out = bigintRe.ReplaceAllString(out, "INTEGER")
	out = serialRe.ReplaceAllString(out, "INTEGER")
	out = trueRe.ReplaceAllString(out, "1")
	out = falseRe.ReplaceAllString(out, "0")
	return out
}

// translateCatalog translates every script of the canonical catalog.
func translateCatalog(catalog []domain.Migration) []domain.Migration {
	out := make([]domain.Migration, len(catalog))
	for i, m := range catalog {
		t := m
		t.Up = make([]string, len(m.Up))
		for j, s := range m.Up {
			t.Up[j] = translateScript(s)
		}
		t.Down = make([]string, len(m.Down))
		for j, s := range m.Down {
			t.Down[j] = translateScript(s)
		}
		out[i] = t
	}
	return out
}

// boolToInt converts a bool bind value to SQLite's 0/1 convention.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isoTime formats a timestamp as an ISO-8601 string for storage.
func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseISOTime reads a stored ISO-8601 timestamp. SQLite's own
// CURRENT_TIMESTAMP format is accepted for rows it defaulted.
func parseISOTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// likePattern escapes user input for a LIKE clause.
func likePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return "%" + s + "%"
}
