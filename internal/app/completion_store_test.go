package app

import (
	"testing"

	"course_runtime/internal/domain/course"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionStore_MarkSectionCompletedNotifiesOnce(t *testing.T) {
	store := NewCompletionStore(testLogger())
	var got []course.SectionKey
	store.Subscribe(func(k course.SectionKey) { got = append(got, k) })

	assert.True(t, store.MarkSectionCompleted(key("lesson1", "s1")))
	assert.False(t, store.MarkSectionCompleted(key("lesson1", "s1")))

	require.Len(t, got, 1)
	assert.Equal(t, key("lesson1", "s1"), got[0])
	assert.True(t, store.IsSectionCompleted(key("lesson1", "s1")))
	assert.False(t, store.IsSectionCompleted(key("lesson2", "s1")))
}

func TestCompletionStore_RejectsPartialKeys(t *testing.T) {
	store := NewCompletionStore(testLogger())
	assert.False(t, store.MarkSectionCompleted(key("", "s1")))
	assert.False(t, store.MarkSectionCompleted(key("lesson1", "")))
	assert.Empty(t, store.SectionsForPage(""))
}

func TestCompletionStore_RestoreDoesNotNotify(t *testing.T) {
	store := NewCompletionStore(testLogger())
	calls := 0
	store.Subscribe(func(course.SectionKey) { calls++ })

	added := store.RestoreCompletedSections("lesson1", []string{"s2", "lesson1_s1", "", "s2"})

	assert.Equal(t, 2, added)
	assert.Zero(t, calls)
	assert.Equal(t, []string{"s1", "s2"}, store.SectionsForPage("lesson1"))
}

func TestCompletionStore_SectionsForPageIsScoped(t *testing.T) {
	store := NewCompletionStore(testLogger())
	store.MarkSectionCompleted(key("lesson1", "s3"))
	store.MarkSectionCompleted(key("lesson1", "s1"))
	store.MarkSectionCompleted(key("lesson2", "s1"))

	assert.Equal(t, []string{"s1", "s3"}, store.SectionsForPage("lesson1"))
	assert.Equal(t, []string{"s1"}, store.SectionsForPage("lesson2"))
	assert.Nil(t, store.SectionsForPage("summary"))
}

func TestCompletionStore_AllCompleted(t *testing.T) {
	sections := []course.SectionElement{{ID: "s1"}, {ID: "s2"}}
	tests := []struct {
		name      string
		completed []string
		sections  []course.SectionElement
		want      bool
	}{
		{name: "none", sections: sections, want: false},
		{name: "some", completed: []string{"s1"}, sections: sections, want: false},
		{name: "all", completed: []string{"s1", "s2"}, sections: sections, want: true},
		{name: "empty page", completed: []string{"s1"}, sections: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewCompletionStore(testLogger())
			store.RestoreCompletedSections("lesson1", tt.completed)
			assert.Equal(t, tt.want, store.AllCompleted("lesson1", tt.sections))
		})
	}
}

func TestCompletionStore_FailingListenerDoesNotStopOthers(t *testing.T) {
	store := NewCompletionStore(testLogger())
	second := 0
	store.Subscribe(func(course.SectionKey) { panic("boom") })
	store.Subscribe(func(course.SectionKey) { second++ })

	assert.True(t, store.MarkSectionCompleted(key("lesson1", "s1")))
	assert.Equal(t, 1, second)
}

func TestCompletionStore_UnsubscribeAndPurge(t *testing.T) {
	store := NewCompletionStore(testLogger())
	calls := 0
	sub := store.Subscribe(func(course.SectionKey) { calls++ })
	store.MarkSectionCompleted(key("lesson1", "s1"))
	sub.Unsubscribe()
	sub.Unsubscribe()
	store.MarkSectionCompleted(key("lesson1", "s2"))
	store.MarkSectionCompleted(key("lesson2", "a1"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, store.PurgePage("lesson1"))
	assert.Empty(t, store.SectionsForPage("lesson1"))
	assert.True(t, store.IsSectionCompleted(key("lesson2", "a1")))

	store.SetSectionIncomplete(key("lesson2", "a1"))
	assert.False(t, store.IsSectionCompleted(key("lesson2", "a1")))

	store.MarkSectionCompleted(key("lesson2", "a2"))
	store.Reset()
	assert.Empty(t, store.SectionsForPage("lesson2"))
}
