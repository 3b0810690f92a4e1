package telegram

import (
	"testing"

	"course_runtime/internal/app"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tocTree() []app.TOCModule {
	return []app.TOCModule{{
		ID:    "m1",
		Title: "Fundamentos",
		Pages: []app.TOCPageNode{
			{Index: 1, PageID: "lesson1", Title: "Riesgos", Current: true, Unlocked: true, Sections: []app.TOCSectionNode{
				{ID: "s1", Title: "Introducción", Completed: true, Unlocked: true},
				{ID: "s2", Unlocked: true},
				{ID: "s3", Title: "Casos"},
			}},
			{Index: 2, PageID: "end", Title: "Fin"},
		},
	}}
}

func TestParseTOCCallback(t *testing.T) {
	tests := []struct {
		data    string
		page    int
		section string
		ok      bool
	}{
		{data: "toc_p_3", page: 3, ok: true},
		{data: "toc_s_1_s2", page: 1, section: "s2", ok: true},
		{data: "toc_s_1", ok: false},
		{data: "toc_s_1_", ok: false},
		{data: "toc_p_x", ok: false},
		{data: "toc_p_-1", ok: false},
		{data: "ans_yes_1", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			page, section, ok := parseTOCCallback(tt.data)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.page, page)
				assert.Equal(t, tt.section, section)
			}
		})
	}
}

func TestChatTOCView_Keyboard(t *testing.T) {
	client := &fakeClient{}
	view := NewChatTOCView(client, 10, "Seguridad", testLogger())
	view.Render(tocTree())
	assert.Empty(t, client.messages, "rendering a hidden TOC sends nothing")

	view.Show()
	require.True(t, view.Visible())
	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Contains(t, msg.Text, "📚 Seguridad")
	assert.Contains(t, msg.Text, "🔒 Fin")

	rows := msg.Markup.InlineKeyboard
	require.Len(t, rows, 3, "locked pages and sections get no button")
	assert.Equal(t, "toc_p_1", rows[0][0].Data)
	assert.Equal(t, "toc_s_1_s1", rows[1][0].Data)
	assert.Contains(t, rows[1][0].Text, "✔ Introducción")
	assert.Equal(t, "toc_s_1_s2", rows[2][0].Data)
	assert.Contains(t, rows[2][0].Text, "• s2")
	for _, row := range rows {
		assert.NotEqual(t, "toc_s_1_s3", row[0].Data)
	}
}

func TestChatTOCView_CompletionUnlocksNextSection(t *testing.T) {
	client := &fakeClient{}
	view := NewChatTOCView(client, 10, "Seguridad", testLogger())
	view.Render(tocTree())
	view.Show()

	view.UpdateSectionStatus(1, "s2", true)
	require.Len(t, client.edits, 1)
	rows := client.edits[0].Markup.InlineKeyboard
	require.Len(t, rows, 4)
	assert.Equal(t, "toc_s_1_s3", rows[3][0].Data)
	assert.Contains(t, rows[3][0].Text, "• Casos")
}

func TestChatTOCView_EditsWhileVisible(t *testing.T) {
	client := &fakeClient{}
	view := NewChatTOCView(client, 10, "Seguridad", testLogger())
	view.Render(tocTree())
	view.Show()
	view.Show()
	require.Len(t, client.messages, 1)

	view.UpdateSectionStatus(1, "s2", true)
	require.Len(t, client.edits, 1)
	assert.Equal(t, client.messages[0].ID, client.edits[0].ID)
	assert.Contains(t, client.edits[0].Markup.InlineKeyboard[2][0].Text, "✔")

	view.UpdatePageStatus(1, true)
	assert.Len(t, client.edits, 2)

	view.Hide()
	assert.False(t, view.Visible())
	assert.Equal(t, []int{client.messages[0].ID}, client.deleted)

	view.UpdatePageStatus(1, false)
	assert.Len(t, client.edits, 2, "hidden TOC is not edited")
	view.Hide()
	assert.Len(t, client.deleted, 1)
}

func TestChatTOCView_ShowFailureKeepsHidden(t *testing.T) {
	client := &fakeClient{failSend: true}
	view := NewChatTOCView(client, 10, "Seguridad", testLogger())
	view.Render(tocTree())

	view.Show()
	assert.False(t, view.Visible())
}
