package chunker_test

import (
	"testing"

	"coderag/internal/chunker"
	"coderag/internal/chunker/languages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractor() *chunker.Extractor {
	return chunker.NewExtractor(languages.NewRegistry())
}

type span struct {
	typ   string
	start int
	end   int
}

func spans(chunks []chunker.Chunk) []span {
	out := make([]span, len(chunks))
	for i, c := range chunks {
		out[i] = span{typ: c.Type(), start: c.StartLine, end: c.EndLine}
	}
	return out
}

func TestExtract_PythonFunctionThenClass(t *testing.T) {
	src := "def login(self, username, password):\n" +
		"    user = find(username)\n" +
		"    return user.check(password)\n" +
		"\n" +
		"class Foo:\n" +
		"    pass\n"

	chunks, err := newExtractor().Extract("auth.py", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, []span{
		{typ: "function:login", start: 1, end: 3},
		{typ: "class:Foo", start: 5, end: 6},
	}, spans(chunks))
	assert.Equal(t, "def login(self, username, password):\n    user = find(username)\n    return user.check(password)", chunks[0].Content)
	assert.Equal(t, "auth.py:1-3", chunks[0].ID())
	assert.Equal(t, "login", chunks[0].Name)
	assert.Equal(t, chunker.KindClass, chunks[1].Kind)
}

func TestExtract_OneLineBraceFunction(t *testing.T) {
	chunks, err := newExtractor().Extract("greet.js", []byte("function greet(name) { return name; }"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "function:greet", chunks[0].Type())
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, chunks[0].StartLine, chunks[0].EndLine)
}

func TestExtract_JavaScriptBlocks(t *testing.T) {
	src := `import { a } from './a';
function greet(name) { return name; }

const add = (a, b) => {
  return a + b;
};

class Greeter extends Base {
  hello() {
    if (x) { return 1; }
  }
}
const double = (x) => x * 2;
`
	chunks, err := newExtractor().Extract("app.js", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "import", start: 1, end: 1},
		{typ: "function:greet", start: 2, end: 2},
		{typ: "function:add", start: 4, end: 6},
		{typ: "class:Greeter", start: 8, end: 12},
		{typ: "function:double", start: 13, end: 13},
	}, spans(chunks))
}

func TestExtract_BraceOnNextLine(t *testing.T) {
	src := `class Greeter extends Base
{
  hello() {
    return 1;
  }
}

function greet(name,
               greeting)
{
  return greeting + name;
}
`
	chunks, err := newExtractor().Extract("allman.js", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "class:Greeter", start: 1, end: 6},
		{typ: "function:greet", start: 8, end: 12},
	}, spans(chunks))
	assert.Contains(t, chunks[0].Content, "return 1;")
}

func TestExtract_BracelessSingleLineDefinitions(t *testing.T) {
	src := `declare function version(): string;
const triple = (x) => x * 3
export function main() {
  return triple(1);
}
`
	chunks, err := newExtractor().Extract("decl.ts", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "function:version", start: 1, end: 1},
		{typ: "function:triple", start: 2, end: 2},
		{typ: "function:main", start: 3, end: 5},
	}, spans(chunks))
}

func TestExtract_TypeScriptSignatures(t *testing.T) {
	src := `export async function fetchUser(id: string): Promise<User> {
  return api.get(id);
}

export const handler = async (req: Request): Promise<void> => {
  await fetchUser(req.id);
}

export default class Store {
  items: string[] = [];
}
`
	chunks, err := newExtractor().Extract("svc.ts", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "function:fetchUser", start: 1, end: 3},
		{typ: "function:handler", start: 5, end: 7},
		{typ: "class:Store", start: 9, end: 11},
	}, spans(chunks))
}

func TestExtract_GoDeclarations(t *testing.T) {
	src := `package main

import "fmt"

type Server struct {
	name string
}

func (s *Server) Start() error {
	fmt.Println("start")
	return nil
}

func main() {
	s := &Server{}
	_ = s.Start()
}
`
	chunks, err := newExtractor().Extract("cmd/main.go", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "import", start: 3, end: 3},
		{typ: "class:Server", start: 5, end: 7},
		{typ: "function:Start", start: 9, end: 12},
		{typ: "function:main", start: 14, end: 17},
	}, spans(chunks))
}

func TestExtract_ImportsOnlyAtFileScope(t *testing.T) {
	src := `import os
from typing import List

def load():
    import json
    return json.loads("{}")
`
	chunks, err := newExtractor().Extract("load.py", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "import", start: 1, end: 1},
		{typ: "import", start: 2, end: 2},
		{typ: "function:load", start: 4, end: 6},
	}, spans(chunks))
	assert.Equal(t, "from typing import List", chunks[1].Content)
}

func TestExtract_TrailingCommentsAndBlanksTrimmed(t *testing.T) {
	src := `def a():
    return 1
# helpers

def b():
    # body comment
    return 2
`
	chunks, err := newExtractor().Extract("h.py", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "function:a", start: 1, end: 2},
		{typ: "function:b", start: 5, end: 7},
	}, spans(chunks))
}

func TestExtract_NestedPythonDefinitionsStayInClass(t *testing.T) {
	src := `class Account:
    def deposit(self, amount):
        self.balance += amount

    def withdraw(self, amount):
        self.balance -= amount

def audit():
    pass
`
	chunks, err := newExtractor().Extract("bank.py", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "class:Account", start: 1, end: 6},
		{typ: "function:audit", start: 8, end: 9},
	}, spans(chunks))
}

func TestExtract_PythonMultiLineSignature(t *testing.T) {
	src := `def connect(
    host,
    port=5432,
):
    return open_socket(host, port)

class Pool(
    Base,
):
    size = 4
`
	chunks, err := newExtractor().Extract("db.py", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "function:connect", start: 1, end: 5},
		{typ: "class:Pool", start: 7, end: 10},
	}, spans(chunks))
	assert.Contains(t, chunks[0].Content, "return open_socket(host, port)")
}

func TestExtract_PythonDecoratorsJoinDefinition(t *testing.T) {
	src := `import functools

@functools.cache
@trace
def fib(n):
    return n if n < 2 else fib(n - 1) + fib(n - 2)

@dataclass
class Point:
    x: int

    @property
    def norm(self):
        return abs(self.x)
`
	chunks, err := newExtractor().Extract("math.py", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []span{
		{typ: "import", start: 1, end: 1},
		{typ: "function:fib", start: 3, end: 6},
		{typ: "class:Point", start: 8, end: 14},
	}, spans(chunks))
	assert.Equal(t, "@functools.cache\n@trace\ndef fib(n):\n    return n if n < 2 else fib(n - 1) + fib(n - 2)", chunks[1].Content)
	assert.Equal(t, "fib", chunks[1].Name)
}

func TestExtract_UnclosedBraceRunsToEnd(t *testing.T) {
	src := "function broken() {\n  if (x) {\n    return 1;\n"
	chunks, err := newExtractor().Extract("broken.js", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	chunks, err := newExtractor().Extract("README.md", []byte("# def not_code():"))
	assert.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	chunks, err := newExtractor().Extract("bin.py", []byte{0xff, 0xfe, 0x00, 'd', 'e', 'f'})
	require.Error(t, err)
	assert.Empty(t, chunks)

	var extractErr *chunker.ExtractError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "bin.py", extractErr.Path)
}

func TestExtract_EmptyAndCommentOnly(t *testing.T) {
	ex := newExtractor()

	chunks, err := ex.Extract("empty.py", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = ex.Extract("notes.ts", []byte("// nothing here\n/* still nothing */\n"))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestExtract_DeterministicAndNonOverlapping(t *testing.T) {
	src := `import os

class A:
    def m(self):
        return 1

def f(x):
    if x:
        return 2
    return 3

async def g():
    await f(1)
import sys
`
	ex := newExtractor()
	first, err := ex.Extract("mix.py", []byte(src))
	require.NoError(t, err)
	second, err := ex.Extract("mix.py", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NotEmpty(t, first)
	ids := make(map[string]bool)
	for i, c := range first {
		assert.LessOrEqual(t, c.StartLine, c.EndLine)
		assert.False(t, ids[c.ID()], "duplicate id %s", c.ID())
		ids[c.ID()] = true
		if i > 0 {
			assert.Greater(t, c.StartLine, first[i-1].EndLine, "chunks %d and %d overlap", i-1, i)
		}
	}
	assert.Equal(t, "import", first[len(first)-1].Type())
}

func TestRegistry_Lookup(t *testing.T) {
	reg := languages.NewRegistry()

	assert.Equal(t, "python", reg.LanguageName("a/b.py"))
	assert.Equal(t, "typescript", reg.LanguageName("x.TSX"))
	assert.Equal(t, "javascript", reg.LanguageName("x.mjs"))
	assert.Equal(t, "go", reg.LanguageName("main.go"))
	assert.Equal(t, "", reg.LanguageName("Makefile"))
	assert.True(t, reg.Extensions()["jsx"])
}
