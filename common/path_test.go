package common_test

import (
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/testkit"
)

func TestJoinPath(t *testing.T) {
	testkit.Equate(t, common.JoinPath("/home/user", "src/main.c"), "/home/user/src/main.c")
	testkit.Equate(t, common.JoinPath("/home/user", "/abs/main.c"), "/abs/main.c")
	testkit.Equate(t, common.JoinPath(`C:\src`, `main.c`), `C:\src\main.c`)
	testkit.Equate(t, common.JoinPath("/home/user", "<built-in>"), "<built-in>")
	testkit.Equate(t, common.JoinPath("", "main.c"), "main.c")
	testkit.Equate(t, common.JoinPath("/home/user", ""), "/home/user")
}

func TestIsWindowsPath(t *testing.T) {
	testkit.Equate(t, common.IsWindowsPath(`C:\foo`), true)
	testkit.Equate(t, common.IsWindowsPath(`\\server\share`), true)
	testkit.Equate(t, common.IsWindowsPath(`foo\bar`), true)
	testkit.Equate(t, common.IsWindowsPath("/foo/bar"), false)
}

func TestSplitPath(t *testing.T) {
	dir, name := common.SplitPath("/home/user/main.c")
	testkit.Equate(t, dir, "/home/user")
	testkit.Equate(t, name, "main.c")

	dir, name = common.SplitPath("main.c")
	testkit.Equate(t, dir, "")
	testkit.Equate(t, name, "main.c")
}

func TestCleanPathIdempotent(t *testing.T) {
	cases := []string{
		"/a/b/../c/./d",
		"a/./b/../../c",
		"/a/../../b",
		`C:\a\.\b\..\c`,
		"",
		".",
		"../a",
	}
	for _, p := range cases {
		once := common.CleanPath(p)
		twice := common.CleanPath(once)
		testkit.Equate(t, twice, once)
	}
}

func TestCleanPathBasic(t *testing.T) {
	testkit.Equate(t, common.CleanPath("/a/b/../c/./d"), "/a/c/d")
	testkit.Equate(t, common.CleanPath("a/./b/../../c"), "c")
}

func TestShortenPathBound(t *testing.T) {
	paths := []string{
		"/very/long/path/to/some/deeply/nested/source/file.c",
		"short.c",
		"",
	}
	for _, p := range paths {
		for n := 0; n <= len(p)+5; n++ {
			got := common.ShortenPath(p, n)
			if len(got) > n {
				t.Fatalf("ShortenPath(%q, %d) = %q (len %d) exceeds bound", p, n, got, len(got))
			}
		}
	}
}

func TestDSymPaths(t *testing.T) {
	debugFile, ok := common.DSymDebugFile("MyApp.app.dSYM")
	testkit.Equate(t, ok, true)
	testkit.Equate(t, debugFile, "MyApp.app.dSYM/Contents/Resources/DWARF/MyApp")

	bundle, ok := common.DSymParent(debugFile)
	testkit.Equate(t, ok, true)
	testkit.Equate(t, bundle, "MyApp.app.dSYM")

	_, ok = common.DSymDebugFile("NotABundle")
	testkit.Equate(t, ok, false)
}
