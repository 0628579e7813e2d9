package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogYAML = `
models:
  - name: Author
    id:
      type: int
      default: autoincrement
    fields:
      - name: name
      - name: createdAt
        type: time
    relations:
      - name: posts
        model: Post
        inverse: author
        many: true
        storage: inverse
        foreignKey: author_id
  - name: Post
    id:
      type: int
      default: autoincrement
    fields:
      - name: title
    relations:
      - name: author
        model: Author
        inverse: posts
        required: true
        foreignKey: author_id
      - name: tags
        model: Tag
        inverse: posts
        many: true
        storage: join_table
        joinTable: post_tags
        joinColumn: post_id
        joinInverseColumn: tag_id
  - name: Tag
    id:
      type: int
      default: autoincrement
    fields:
      - name: label
    relations:
      - name: posts
        model: Post
        inverse: tags
        many: true
        storage: join_table
        joinTable: post_tags
        joinColumn: tag_id
        joinInverseColumn: post_id
`

func TestParse(t *testing.T) {
	t.Parallel()
	s, err := Parse([]byte(blogYAML))
	require.NoError(t, err)

	author := s.Model("Author")
	require.NotNil(t, author)
	assert.Equal(t, "authors", author.Table)
	assert.Equal(t, "id", author.ID.Name, "id name defaults to id")
	assert.Equal(t, TypeInt, author.ID.Type)
	assert.Equal(t, DefaultAutoIncrement, author.ID.Default)
	assert.Equal(t, TypeString, author.Field("name").Type, "field type defaults to string")
	assert.Equal(t, "created_at", author.Field("createdAt").Column)

	post := s.Model("Post")
	require.NotNil(t, post)
	rel := post.Relation("author")
	require.NotNil(t, rel)
	assert.Equal(t, StorageOwner, rel.Storage, "storage defaults to owner")
	assert.True(t, rel.Required)
	assert.Same(t, s.Model("Author"), rel.RelatedModel())

	tags := post.Relation("tags")
	require.NotNil(t, tags)
	assert.True(t, tags.ManyToMany())
	assert.Equal(t, "post_tags", tags.JoinTable)

	names := make([]string, 0, 3)
	for _, m := range s.Models() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Author", "Post", "Tag"}, names)
}

func TestParseRejectsBadYAML(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("models: {not: a list}"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(blogYAML), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, s.Model("Post"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(blogYAML), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	loaded := make(chan *Schema, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(s *Schema, err error) {
			if err == nil {
				select {
				case loaded <- s:
				default:
				}
			}
		})
	}()

	// Give the watcher a moment to register before touching the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(blogYAML), 0o644))

	select {
	case s := <-loaded:
		assert.NotNil(t, s.Model("Author"))
	case <-ctx.Done():
		t.Fatal("watcher never delivered a reload")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
