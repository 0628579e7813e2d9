package engine_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/connector/conntest"
	"github.com/syssam/querygraph/engine"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

func blogEngine(t *testing.T, conn *conntest.Conn) *engine.Engine {
	t.Helper()
	author := &schema.Model{
		Name:   "Author",
		ID:     &schema.Field{Name: "id", Type: schema.TypeInt, Default: schema.DefaultAutoIncrement},
		Fields: []*schema.Field{{Name: "name", Type: schema.TypeString}},
	}
	author.AddRelations(&schema.RelationField{
		Name: "posts", RelatedTo: "Post", Inverse: "author",
		Many: true, Storage: schema.StorageInverse, ForeignKey: "author_id",
	})
	post := &schema.Model{
		Name:   "Post",
		ID:     &schema.Field{Name: "id", Type: schema.TypeInt, Default: schema.DefaultAutoIncrement},
		Fields: []*schema.Field{{Name: "title", Type: schema.TypeString}},
	}
	post.AddRelations(&schema.RelationField{
		Name: "author", RelatedTo: "Author", Inverse: "posts",
		Required: true, Storage: schema.StorageOwner, ForeignKey: "author_id",
	})
	s, err := schema.New(author, post)
	require.NoError(t, err)
	return engine.New(conn, s)
}

// TestCreateWithNestedAuthor walks the whole pipeline: the nested author is
// written first, its id lands on the post, and the read-back payload nests
// the author object under the post.
func TestCreateWithNestedAuthor(t *testing.T) {
	t.Parallel()
	conn := conntest.New()
	conn.SetNextID(7)
	conn.QueueFind("posts", connector.Row{"id": int64(8), "title": "Hi", "author_id": int64(7)})
	conn.QueueFind("authors", connector.Row{"id": int64(7), "name": "Ann"})

	e := blogEngine(t, conn)
	data, err := e.ExecuteJSON(context.Background(), &operation.Create{
		Model: "Post",
		Input: operation.CreateInput{
			Args: operation.WriteArgs{"title": "Hi"},
			Nested: []operation.NestedWrite{{
				Relation: "author",
				Create:   []operation.CreateInput{{Args: operation.WriteArgs{"name": "Ann"}}},
			}},
		},
		Nested: []operation.NestedRead{
			{Relation: "author", Read: operation.Read{}},
		},
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, float64(8), got["id"])
	assert.Equal(t, "Hi", got["title"])
	author, ok := got["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), author["id"])
	assert.Equal(t, "Ann", author["name"])

	// One transaction around the whole graph.
	assert.Equal(t, 1, conn.Begins())
	assert.Equal(t, 1, conn.Commits())

	// The author was inserted before the post that references it.
	var tables []string
	for _, op := range conn.Ops() {
		if _, ok := op.(*connector.Insert); ok {
			tables = append(tables, op.TableName())
		}
	}
	assert.Equal(t, []string{"authors", "posts"}, tables)
}

func TestExecuteSurfacesDomainErrors(t *testing.T) {
	t.Parallel()
	conn := conntest.New()
	e := blogEngine(t, conn)
	_, err := e.Execute(context.Background(), &operation.Update{
		Model: "Author",
		Where: operation.EQ("id", 99),
		Args:  operation.WriteArgs{"name": "Bo"},
	})
	require.Error(t, err)
	assert.True(t, querygraph.IsNotFound(err))
	assert.Equal(t, 1, conn.Rollbacks())
}

func TestExecuteRejectsUnknownModel(t *testing.T) {
	t.Parallel()
	conn := conntest.New()
	e := blogEngine(t, conn)
	_, err := e.Execute(context.Background(), &operation.Read{Model: "Nope"})
	require.Error(t, err)
	assert.True(t, querygraph.IsCompileError(err))
	assert.Equal(t, 0, conn.Begins(), "compile errors never touch the database")
}

func TestExecuteMsgpack(t *testing.T) {
	t.Parallel()
	conn := conntest.New()
	conn.QueueFind("authors", connector.Row{"id": int64(1), "name": "Ann"})
	e := blogEngine(t, conn)
	data, err := e.ExecuteMsgpack(context.Background(), &operation.Read{Model: "Author"})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
