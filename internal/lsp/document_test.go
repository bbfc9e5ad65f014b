package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLineOffsets(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []int
	}{
		{name: "empty", content: "", expected: []int{0}},
		{name: "single line", content: "SELECT 1", expected: []int{0}},
		{name: "two lines", content: "SELECT 1\nFROM t", expected: []int{0, 9}},
		{name: "trailing newline", content: "SELECT 1\n", expected: []int{0, 9}},
		{name: "blank lines", content: "a\n\nb", expected: []int{0, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, computeLineOffsets(tt.content))
		})
	}
}

func TestPositionToOffset(t *testing.T) {
	store := NewDocumentStore()
	doc := store.Open("file:///q.sql", "SELECT id\nFROM users\nWHERE id = 1", 1)

	tests := []struct {
		name     string
		pos      Position
		expected int
	}{
		{name: "start", pos: Position{Line: 0, Character: 0}, expected: 0},
		{name: "mid first line", pos: Position{Line: 0, Character: 7}, expected: 7},
		{name: "second line", pos: Position{Line: 1, Character: 5}, expected: 15},
		{name: "past line end clamps", pos: Position{Line: 0, Character: 99}, expected: 9},
		{name: "past last line clamps", pos: Position{Line: 9, Character: 0}, expected: 33},
		{name: "end of document", pos: Position{Line: 2, Character: 12}, expected: 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, doc.PositionToOffset(tt.pos))
		})
	}
}

func TestOffsetToPosition(t *testing.T) {
	store := NewDocumentStore()
	doc := store.Open("file:///q.sql", "SELECT id\nFROM users", 1)

	tests := []struct {
		name     string
		offset   int
		expected Position
	}{
		{name: "start", offset: 0, expected: Position{Line: 0, Character: 0}},
		{name: "before newline", offset: 9, expected: Position{Line: 0, Character: 9}},
		{name: "after newline", offset: 10, expected: Position{Line: 1, Character: 0}},
		{name: "end", offset: 20, expected: Position{Line: 1, Character: 10}},
		{name: "negative clamps", offset: -3, expected: Position{Line: 0, Character: 0}},
		{name: "beyond end clamps", offset: 99, expected: Position{Line: 1, Character: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, doc.OffsetToPosition(tt.offset))
		})
	}
}

func TestDocumentStoreLifecycle(t *testing.T) {
	store := NewDocumentStore()

	store.Open("file:///a.sql", "SELECT 1", 1)
	doc := store.Get("file:///a.sql")
	assert.NotNil(t, doc)
	assert.Equal(t, "SELECT 1", doc.Content)
	assert.Equal(t, 1, doc.Version)

	store.Update("file:///a.sql", "SELECT 2\nFROM t", 2)
	doc = store.Get("file:///a.sql")
	assert.Equal(t, "SELECT 2\nFROM t", doc.Content)
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, []int{0, 9}, doc.Lines)

	store.Close("file:///a.sql")
	assert.Nil(t, store.Get("file:///a.sql"))
}

func TestURIConversion(t *testing.T) {
	assert.Equal(t, "/home/me/q.sql", URIToPath("file:///home/me/q.sql"))
	assert.Equal(t, "/home/me/q.sql", URIToPath("/home/me/q.sql"))
	assert.Equal(t, "file:///home/me/q.sql", PathToURI("/home/me/q.sql"))
	assert.Equal(t, "file:///home/me/q.sql", PathToURI("file:///home/me/q.sql"))
}
