package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectionKeyCompoundForm(t *testing.T) {
	key := SectionKey{PageID: "lesson1", SectionID: "s2"}
	assert.Equal(t, "lesson1_s2", key.String())

	parsed, ok := ParseSectionKey("lesson1_s2")
	assert.True(t, ok)
	assert.Equal(t, key, parsed)

	_, ok = ParseSectionKey("nounderscore")
	assert.False(t, ok)
	_, ok = ParseSectionKey("_s1")
	assert.False(t, ok)
}

func TestNormalizeSectionID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		pageID string
		want   string
	}{
		{name: "local id", raw: "s1", pageID: "lesson1", want: "s1"},
		{name: "own prefix", raw: "lesson1_s1", pageID: "lesson1", want: "s1"},
		{name: "foreign prefix", raw: "lesson2_s3", pageID: "lesson1", want: "s3"},
		{name: "no page", raw: "lesson2_s3", pageID: "", want: "s3"},
		{name: "blank", raw: "  ", pageID: "lesson1", want: ""},
		{name: "trailing separator", raw: "s1_", pageID: "lesson1", want: "s1_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSectionID(tt.raw, tt.pageID))
		})
	}
}

func TestPendingNavigationAppliesTo(t *testing.T) {
	assert.True(t, PendingNavigation{PageIndex: 2, SectionID: "s1"}.AppliesTo(2))
	assert.False(t, PendingNavigation{PageIndex: 2, SectionID: "s1"}.AppliesTo(3))
	assert.True(t, PendingNavigation{PageIndex: -1, SectionID: "s1"}.AppliesTo(3))
}
