package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	executor "github.com/hanpama/graphexec/internal/executor"
	introspection "github.com/hanpama/graphexec/internal/introspection"
	resolver "github.com/hanpama/graphexec/internal/resolver"
	schema "github.com/hanpama/graphexec/internal/schema"
)

const librarySDL = `
"""An object with a globally unique ID."""
interface Node {
  id: ID!
}

enum Genre {
  FICTION
  SCIENCE
  HISTORY
  POETRY @deprecated(reason: "Merged into FICTION.")
}

type Author implements Node {
  id: ID!
  name: String!
  books: [Book!]!
}

type Book implements Node {
  id: ID!
  title: String!
  genre: Genre!
  author: Author!
}

union SearchResult = Author | Book

input BookInput {
  title: String!
  genre: Genre!
  authorId: ID!
}

type Query {
  node(id: ID!): Node
  books(genre: Genre): [Book!]!
  authors: [Author!]!
  search(text: String!): [SearchResult!]!
}

type Mutation {
  addBook(input: BookInput!): Book!
}

type Subscription {
  bookAdded: Book!
}
`

type Genre string

type Author struct {
	ID   string
	Name string
}

type Book struct {
	ID       string
	Title    string
	Genre    Genre
	AuthorID string
}

// library is the in-memory store behind the demo schema.
type library struct {
	mu       sync.RWMutex
	authors  []*Author
	books    []*Book
	watchers map[chan *Book]struct{}
}

func newLibrary() *library {
	return &library{
		authors: []*Author{
			{ID: "a1", Name: "Ursula K. Le Guin"},
			{ID: "a2", Name: "Carl Sagan"},
		},
		books: []*Book{
			{ID: "b1", Title: "The Dispossessed", Genre: "FICTION", AuthorID: "a1"},
			{ID: "b2", Title: "A Wizard of Earthsea", Genre: "FICTION", AuthorID: "a1"},
			{ID: "b3", Title: "Cosmos", Genre: "SCIENCE", AuthorID: "a2"},
		},
		watchers: map[chan *Book]struct{}{},
	}
}

func (l *library) author(id string) *Author {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, a := range l.authors {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (l *library) book(id string) *Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, b := range l.books {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (l *library) listAuthors() []*Author {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Author(nil), l.authors...)
}

func (l *library) listBooks(match func(*Book) bool) []*Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Book
	for _, b := range l.books {
		if match == nil || match(b) {
			out = append(out, b)
		}
	}
	return out
}

func (l *library) addBook(title string, genre Genre, authorID string) (*Book, error) {
	if l.author(authorID) == nil {
		return nil, executor.Errorf("No author with id %q.", authorID)
	}
	l.mu.Lock()
	b := &Book{ID: "b" + strconv.Itoa(len(l.books)+1), Title: title, Genre: genre, AuthorID: authorID}
	l.books = append(l.books, b)
	watchers := make([]chan *Book, 0, len(l.watchers))
	for ch := range l.watchers {
		watchers = append(watchers, ch)
	}
	l.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- b:
		default:
		}
	}
	return b, nil
}

// watch delivers every book added until ctx is done.
func (l *library) watch(ctx context.Context) <-chan *Book {
	ch := make(chan *Book, 16)
	l.mu.Lock()
	l.watchers[ch] = struct{}{}
	l.mu.Unlock()
	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.watchers, ch)
		l.mu.Unlock()
		close(ch)
	}()
	return ch
}

func (l *library) search(text string) []any {
	text = strings.ToLower(text)
	var out []any
	for _, a := range l.listAuthors() {
		if strings.Contains(strings.ToLower(a.Name), text) {
			out = append(out, a)
		}
	}
	for _, b := range l.listBooks(func(b *Book) bool { return strings.Contains(strings.ToLower(b.Title), text) }) {
		out = append(out, b)
	}
	return out
}

// newLibraryRuntime builds the demo schema and its resolver registry.
func newLibraryRuntime(lib *library, withIntrospection bool, log logr.Logger) (*schema.Schema, *resolver.Registry, error) {
	sch, err := schema.BuildFromSDL(librarySDL)
	if err != nil {
		return nil, nil, fmt.Errorf("build schema: %w", err)
	}

	b := resolver.NewBuilder(sch).
		Resolve("Query", "node", func(rc *executor.ResolverContext) (any, error) {
			id, err := executor.Argument[string](rc, "id")
			if err != nil {
				return nil, err
			}
			if a := lib.author(id); a != nil {
				return a, nil
			}
			if b := lib.book(id); b != nil {
				return b, nil
			}
			return nil, nil
		}).
		Resolve("Query", "books", func(rc *executor.ResolverContext) (any, error) {
			genre, err := executor.Argument[Genre](rc, "genre")
			if err != nil {
				return nil, err
			}
			if genre == "" {
				return lib.listBooks(nil), nil
			}
			return lib.listBooks(func(b *Book) bool { return b.Genre == genre }), nil
		}).
		ResolveSync("Query", "authors", func(rc *executor.ResolverContext) (any, error) {
			return lib.listAuthors(), nil
		}).
		Resolve("Query", "search", func(rc *executor.ResolverContext) (any, error) {
			text, err := executor.Argument[string](rc, "text")
			if err != nil {
				return nil, err
			}
			return lib.search(text), nil
		}).
		Resolve("Mutation", "addBook", func(rc *executor.ResolverContext) (any, error) {
			input, err := executor.Argument[map[string]any](rc, "input")
			if err != nil {
				return nil, err
			}
			title, _ := input["title"].(string)
			genre, _ := input["genre"].(string)
			authorID, _ := input["authorId"].(string)
			return lib.addBook(title, Genre(genre), authorID)
		}).
		Resolve("Subscription", "bookAdded", func(rc *executor.ResolverContext) (any, error) {
			return lib.watch(rc.Context()), nil
		}).
		Resolve("Book", "author", func(rc *executor.ResolverContext) (any, error) {
			book, err := executor.Parent[*Book](rc)
			if err != nil {
				return nil, err
			}
			if a := lib.author(book.AuthorID); a != nil {
				return a, nil
			}
			return nil, fmt.Errorf("book %s references unknown author %s", book.ID, book.AuthorID)
		}).
		ResolveSync("Author", "books", func(rc *executor.ResolverContext) (any, error) {
			author, err := executor.Parent[*Author](rc)
			if err != nil {
				return nil, err
			}
			return lib.listBooks(func(b *Book) bool { return b.AuthorID == author.ID }), nil
		}).
		Use("Mutation", "addBook", auditMutation(log)).
		BindObject("Author").
		BindObject("Book")
	if withIntrospection {
		introspection.Register(b)
	}

	reg, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return sch, reg, nil
}

// auditMutation logs the outcome of a mutation field.
func auditMutation(log logr.Logger) executor.Middleware {
	return func(next executor.FieldDelegate) executor.FieldDelegate {
		return func(rc *executor.ResolverContext) error {
			err := next(rc)
			if err != nil {
				log.Info("mutation rejected", "field", rc.Field().Name, "error", err.Error())
				return err
			}
			log.Info("mutation applied", "field", rc.Field().Name, "arguments", rc.Arguments())
			return nil
		}
	}
}
