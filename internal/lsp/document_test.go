package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore_OpenGetClose(t *testing.T) {
	store := NewDocumentStore()

	uri := "file:///test/kernel.cl"
	content := "__kernel void foo() {}"

	store.Open(uri, content, 1)

	doc := store.Get(uri)
	require.NotNil(t, doc)
	assert.Equal(t, uri, doc.URI)
	assert.Equal(t, content, doc.Content)
	assert.Equal(t, 1, doc.Version)

	store.Close(uri)
	assert.Nil(t, store.Get(uri))
}

func TestDocumentStore_Update(t *testing.T) {
	store := NewDocumentStore()

	uri := "file:///test/kernel.cl"
	store.Open(uri, "__kernel void a() {}", 1)

	store.Update(uri, "__kernel void b() {}", 2)

	doc := store.Get(uri)
	require.NotNil(t, doc)
	assert.Equal(t, "__kernel void b() {}", doc.Content)
	assert.Equal(t, 2, doc.Version)
}

func TestDocumentStore_UpdateUnknownURIIsNoOp(t *testing.T) {
	store := NewDocumentStore()

	store.Update("file:///missing.cl", "content", 5)

	assert.Nil(t, store.Get("file:///missing.cl"))
}

func TestDocumentStore_List(t *testing.T) {
	store := NewDocumentStore()

	store.Open("file:///a.cl", "a", 1)
	store.Open("file:///b.cl", "b", 1)
	store.Open("file:///c.cl", "c", 1)

	assert.Len(t, store.List(), 3)
}

func TestURIToPath(t *testing.T) {
	assert.Equal(t, "/tmp/kernel.cl", URIToPath("file:///tmp/kernel.cl"))
	assert.Equal(t, "/tmp/kernel.cl", URIToPath("/tmp/kernel.cl"))
}

func TestPathToURI(t *testing.T) {
	assert.Equal(t, "file:///tmp/kernel.cl", PathToURI("/tmp/kernel.cl"))
	assert.Equal(t, "file:///tmp/kernel.cl", PathToURI("file:///tmp/kernel.cl"))
}
