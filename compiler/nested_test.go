package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// indexOf returns the position of a node in a topological order.
func indexOf(order []graph.NodeRef, n graph.NodeRef) int {
	for i, o := range order {
		if o == n {
			return i
		}
	}
	return -1
}

func TestNestedCreateChildFK(t *testing.T) {
	t.Parallel()
	c := blogCompiler(t)
	// Creating an Author with a nested Post: the FK lives on the Post, so
	// the author executes first and feeds its id into the post.
	plan, err := c.CompileCreate(&operation.Create{
		Model: "Author",
		Input: operation.CreateInput{
			Args: operation.WriteArgs{"name": "Ann"},
			Nested: []operation.NestedWrite{{
				Relation: "posts",
				Create:   []operation.CreateInput{{Args: operation.WriteArgs{"title": "Hi"}}},
			}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, plan.Graph.Finalize())

	author := opNodes[*connector.Insert](plan.Graph)[0]
	post := opNodes[*connector.Insert](plan.Graph)[1]
	assert.Equal(t, "authors", plan.Graph.Node(author).Op().TableName())
	assert.Equal(t, "posts", plan.Graph.Node(post).Op().TableName())

	order, err := plan.Graph.TopoOrder()
	require.NoError(t, err)
	assert.Less(t, indexOf(order, author), indexOf(order, post))
}

func TestNestedCreateParentFKFlips(t *testing.T) {
	t.Parallel()
	c := blogCompiler(t)
	// Creating a Post with a nested Author: the FK lives on the Post itself,
	// so after finalization the author insert must come first even though
	// the post is the operation's root.
	plan, err := c.CompileCreate(&operation.Create{
		Model: "Post",
		Input: operation.CreateInput{
			Args: operation.WriteArgs{"title": "Hi"},
			Nested: []operation.NestedWrite{{
				Relation: "author",
				Create:   []operation.CreateInput{{Args: operation.WriteArgs{"name": "Ann"}}},
			}},
		},
	})
	require.NoError(t, err)

	post := opNodes[*connector.Insert](plan.Graph)[0]
	author := opNodes[*connector.Insert](plan.Graph)[1]

	require.NoError(t, plan.Graph.Finalize())
	order, err := plan.Graph.TopoOrder()
	require.NoError(t, err)
	assert.Less(t, indexOf(order, author), indexOf(order, post))

	// The reversed edge feeds the author's id into the post's values.
	in := plan.Graph.IncomingEdges(post)
	require.Len(t, in, 1)
	assert.Equal(t, author, plan.Graph.EdgeSource(in[0]))
	assert.NotNil(t, plan.Graph.Dependency(in[0]).Transform)
}

func TestNestedCreateManyToMany(t *testing.T) {
	t.Parallel()
	c := blogCompiler(t)
	plan, err := c.CompileCreate(&operation.Create{
		Model: "Post",
		Input: operation.CreateInput{
			Args: operation.WriteArgs{"title": "Hi", "author_id": 1},
			Nested: []operation.NestedWrite{{
				Relation: "tags",
				Create:   []operation.CreateInput{{Args: operation.WriteArgs{"label": "go"}}},
			}},
		},
	})
	require.Error(t, err) // author_id is a column, not a field

	plan, err = c.CompileCreate(&operation.Create{
		Model: "Post",
		Input: operation.CreateInput{
			Args: operation.WriteArgs{"title": "Hi"},
			Nested: []operation.NestedWrite{{
				Relation: "tags",
				Create:   []operation.CreateInput{{Args: operation.WriteArgs{"label": "go"}}},
			}},
		},
	})
	require.NoError(t, err)

	connects := opNodes[*connector.Connect](plan.Graph)
	require.Len(t, connects, 1)
	op := plan.Graph.Node(connects[0]).Op().(*connector.Connect)
	assert.Equal(t, "post_tags", op.Table)
	assert.Equal(t, "post_id", op.LeftColumn)
	assert.Equal(t, "tag_id", op.RightColumn)

	// Fed from both sides: the post (left ids) and the new tag (right ids).
	assert.Len(t, plan.Graph.IncomingEdges(connects[0]), 2)
}

func TestNestedConnect(t *testing.T) {
	t.Parallel()
	c := blogCompiler(t)
	plan, err := c.CompileUpdate(&operation.Update{
		Model: "Author",
		Where: operation.EQ("id", 1),
		NestedW: []operation.NestedWrite{{
			Relation: "posts",
			Connect:  []operation.Filter{operation.EQ("id", 10), operation.EQ("id", 11)},
		}},
	})
	require.NoError(t, err)

	// FK on the child: connecting is an update pointing the posts here.
	upds := opsOn[*connector.Update](plan.Graph, "posts")
	require.Len(t, upds, 1)

	// The lookup resolves both unique filters as one disjunction.
	finds := opsOn[*connector.Find](plan.Graph, "posts")
	require.Len(t, finds, 1)
	or, ok := finds[0].Where.(*connector.OrPred)
	require.True(t, ok)
	assert.Len(t, or.Operands, 2)
}

func TestNestedConnectSparesCurrentChild(t *testing.T) {
	t.Parallel()

	t.Run("required inverse guards only other children", func(t *testing.T) {
		t.Parallel()
		author := &schema.Model{
			Name:   "Author",
			ID:     &schema.Field{Name: "id", Type: schema.TypeInt, Default: schema.DefaultAutoIncrement},
			Fields: []*schema.Field{{Name: "name", Type: schema.TypeString}},
		}
		author.AddRelations(&schema.RelationField{
			Name: "profile", RelatedTo: "Profile", Inverse: "author",
			Storage: schema.StorageInverse, ForeignKey: "author_id",
		})
		profile := &schema.Model{
			Name:   "Profile",
			ID:     &schema.Field{Name: "id", Type: schema.TypeInt, Default: schema.DefaultAutoIncrement},
			Fields: []*schema.Field{{Name: "bio", Type: schema.TypeString}},
		}
		profile.AddRelations(&schema.RelationField{
			Name: "author", RelatedTo: "Author", Inverse: "profile",
			Required: true, Storage: schema.StorageOwner, ForeignKey: "author_id",
		})
		s, err := schema.New(author, profile)
		require.NoError(t, err)

		plan, err := New(s).CompileUpdate(&operation.Update{
			Model: "Author",
			Where: operation.EQ("id", 1),
			NestedW: []operation.NestedWrite{{
				Relation: "profile",
				Connect:  []operation.Filter{operation.EQ("id", 5)},
			}},
		})
		require.NoError(t, err)

		// Two reads on profiles: the connect lookup and the guard. The
		// guard excludes the record being connected, so re-linking the
		// profile already in place is a valid no-op.
		finds := opsOn[*connector.Find](plan.Graph, "profiles")
		require.Len(t, finds, 2)
		var guarded *connector.NotPred
		for _, f := range finds {
			if not, ok := f.Where.(*connector.NotPred); ok {
				guarded = not
			}
		}
		require.NotNil(t, guarded)
		cmp, ok := guarded.Operand.(*connector.Cmp)
		require.True(t, ok)
		assert.Equal(t, "id", cmp.Column)
		assert.Equal(t, 5, cmp.Value)
	})

	t.Run("optional inverse detaches only other children", func(t *testing.T) {
		t.Parallel()
		c := blogCompiler(t)
		plan, err := c.CompileUpdate(&operation.Update{
			Model: "Author",
			Where: operation.EQ("id", 1),
			NestedW: []operation.NestedWrite{{
				Relation: "profile",
				Connect:  []operation.Filter{operation.EQ("id", 5)},
			}},
		})
		require.NoError(t, err)

		// The detach nulls the FK of other profiles only; the connect
		// update points the looked-up profile here.
		upds := opsOn[*connector.Update](plan.Graph, "profiles")
		require.Len(t, upds, 2)
		var detach *connector.Update
		for _, u := range upds {
			if _, ok := u.Values["author_id"]; ok && u.Values["author_id"] == nil {
				detach = u
			}
		}
		require.NotNil(t, detach)
		_, ok := detach.Where.(*connector.NotPred)
		assert.True(t, ok)
	})
}

func TestNestedDisconnectClearsFK(t *testing.T) {
	t.Parallel()
	c := blogCompiler(t)
	plan, err := c.CompileUpdate(&operation.Update{
		Model: "Author",
		Where: operation.EQ("id", 1),
		NestedW: []operation.NestedWrite{{
			Relation:   "posts",
			Disconnect: []operation.Filter{operation.EQ("id", 10)},
		}},
	})
	require.NoError(t, err)
	upds := opsOn[*connector.Update](plan.Graph, "posts")
	require.Len(t, upds, 1)
	assert.Equal(t, connector.Row{"author_id": nil}, upds[0].Values)
}

func TestNestedSetDiffsManyToMany(t *testing.T) {
	t.Parallel()
	c := blogCompiler(t)
	plan, err := c.CompileUpdate(&operation.Update{
		Model: "Post",
		Where: operation.EQ("id", 1),
		NestedW: []operation.NestedWrite{{
			Relation:    "tags",
			Set:         []operation.Filter{operation.EQ("id", 2), operation.EQ("id", 3)},
			SetProvided: true,
		}},
	})
	require.NoError(t, err)

	// Current and desired sets meet in a diff; only the membership changes
	// are written.
	var comps int
	for _, n := range plan.Graph.Nodes() {
		if plan.Graph.Node(n).Kind() == graph.KindComputation {
			comps++
		}
	}
	assert.Equal(t, 1, comps)
	assert.Len(t, opNodes[*connector.Disconnect](plan.Graph), 1)
	assert.Len(t, opNodes[*connector.Connect](plan.Graph), 1)
}

func TestNestedUpsertBranches(t *testing.T) {
	t.Parallel()
	c := blogCompiler(t)
	plan, err := c.CompileUpdate(&operation.Update{
		Model: "Author",
		Where: operation.EQ("id", 1),
		NestedW: []operation.NestedWrite{{
			Relation: "profile",
			Upsert: []operation.NestedUpsert{{
				Where:  operation.EQ("id", 5),
				Create: operation.CreateInput{Args: operation.WriteArgs{"bio": "hi"}},
				Update: operation.WriteArgs{"bio": "hi"},
			}},
		}},
	})
	require.NoError(t, err)

	var thens, elses int
	for _, n := range plan.Graph.Nodes() {
		for _, e := range plan.Graph.IncomingEdges(n) {
			switch plan.Graph.Dependency(e).Kind {
			case graph.EdgeThen:
				thens++
			case graph.EdgeElse:
				elses++
			}
		}
	}
	assert.Equal(t, 1, thens, "one conditionally gated update branch")
	assert.Equal(t, 1, elses, "one conditionally gated create branch")
}

func TestNestedWriteRejections(t *testing.T) {
	t.Parallel()
	c := blogCompiler(t)

	t.Run("destructive action inside create", func(t *testing.T) {
		t.Parallel()
		_, err := c.CompileCreate(&operation.Create{
			Model: "Author",
			Input: operation.CreateInput{
				Args: operation.WriteArgs{"name": "Ann"},
				Nested: []operation.NestedWrite{{
					Relation: "posts",
					Delete:   []operation.Filter{operation.EQ("id", 1)},
				}},
			},
		})
		require.Error(t, err)
		assert.True(t, querygraph.IsCompileError(err))
	})

	t.Run("several records on a to-one relation", func(t *testing.T) {
		t.Parallel()
		_, err := c.CompileCreate(&operation.Create{
			Model: "Post",
			Input: operation.CreateInput{
				Args: operation.WriteArgs{"title": "Hi"},
				Nested: []operation.NestedWrite{{
					Relation: "author",
					Create: []operation.CreateInput{
						{Args: operation.WriteArgs{"name": "A"}},
						{Args: operation.WriteArgs{"name": "B"}},
					},
				}},
			},
		})
		require.Error(t, err)
		assert.True(t, querygraph.IsCompileError(err))
	})

	t.Run("disconnecting a required relation", func(t *testing.T) {
		t.Parallel()
		_, err := c.CompileUpdate(&operation.Update{
			Model: "Post",
			Where: operation.EQ("id", 1),
			NestedW: []operation.NestedWrite{{
				Relation:   "author",
				Disconnect: []operation.Filter{nil},
			}},
		})
		require.Error(t, err)
		assert.True(t, querygraph.IsRelationViolation(err))
	})

	t.Run("set on a to-one relation", func(t *testing.T) {
		t.Parallel()
		_, err := c.CompileUpdate(&operation.Update{
			Model: "Author",
			Where: operation.EQ("id", 1),
			NestedW: []operation.NestedWrite{{
				Relation:    "profile",
				Set:         []operation.Filter{operation.EQ("id", 2)},
				SetProvided: true,
			}},
		})
		require.Error(t, err)
		assert.True(t, querygraph.IsCompileError(err))
	})
}
