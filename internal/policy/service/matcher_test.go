package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPath(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"ExactMatch", "/services/app/db", "/services/app/db", true},
		{"WildcardLastSegment", "/services/app/*", "/services/app/db", true},
		{"WildcardDoesNotCrossSlash", "/services/app/*", "/services/app/db/password", false},
		{"WildcardMiddleSegment", "/services/*/db", "/services/x/db", true},
		{"WildcardNeedsSegment", "/services/*/db", "/services/db", false},
		{"SegmentCountMismatch", "/services/app", "/services/app/db", false},
		{"CaseSensitive", "/Services/app/db", "/services/app/db", false},
		{"TrailingSlashNormalised", "/services/app/db/", "/services/app/db", true},
		{"TrailingSlashOnPath", "/services/app/db", "/services/app/db/", true},
		{"EmptyPattern", "", "/services/app/db", false},
		{"EmptyPath", "/services/app/db", "", false},
		{"MultipleWildcards", "/*/*/db", "/services/app/db", true},
		{"NoLeadingSlashBothSides", "services/app/db", "services/app/db", true},
		{"LeadingSlashMismatch", "/services/app/db", "services/app/db", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchPath(tt.pattern, tt.path))
		})
	}
}
