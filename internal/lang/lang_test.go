package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		tag  string
		want Language
	}{
		{"python", Python},
		{"Python", Python},
		{"py", Python},
		{"javascript", JavaScript},
		{"JS", JavaScript},
		{"typescript", TypeScript},
		{"golang", Go},
		{"markdown", Markdown},
		{"md", Markdown},
		{"rust", Unknown},
		{"", Unknown},
		{"  python  ", Python},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.tag))
		})
	}
}

func TestTestFileName(t *testing.T) {
	tests := []struct {
		name   string
		lang   Language
		source string
		want   string
	}{
		{"python top-level", Python, "main.py", "test_main.py"},
		{"python nested", Python, "pkg/app.py", "pkg/test_app.py"},
		{"javascript", JavaScript, "src/util.js", "src/util.test.js"},
		{"typescript", TypeScript, "index.ts", "index.test.ts"},
		{"go", Go, "sum.go", "sum_test.go"},
		{"markdown has none", Markdown, "README.md", ""},
		{"unknown falls back to python style", Unknown, "script.sh", "test_script.sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.lang.TestFileName(tt.source))
		})
	}
}

func TestFromPath(t *testing.T) {
	assert.Equal(t, Python, FromPath("src/main.py"))
	assert.Equal(t, JavaScript, FromPath("app.mjs"))
	assert.Equal(t, TypeScript, FromPath("index.ts"))
	assert.Equal(t, Go, FromPath("cmd/main.go"))
	assert.Equal(t, Markdown, FromPath("README.md"))
	assert.Equal(t, Unknown, FromPath("Makefile"))
}

func TestIsTestFile(t *testing.T) {
	assert.True(t, IsTestFile("test_main.py"))
	assert.True(t, IsTestFile("pkg/test_app.py"))
	assert.True(t, IsTestFile("src/util.test.js"))
	assert.True(t, IsTestFile("sum_test.go"))
	assert.False(t, IsTestFile("main.py"))
	assert.False(t, IsTestFile("latest_news.md"))
	assert.False(t, IsTestFile("contest.py"))
}

func TestTestCommand(t *testing.T) {
	cmd, ok := Python.TestCommand("test_main.py")
	assert.True(t, ok)
	assert.Equal(t, []string{"python", "test_main.py"}, cmd)

	_, ok = Markdown.TestCommand("README.md")
	assert.False(t, ok)

	_, ok = Unknown.TestCommand("test_x.sh")
	assert.False(t, ok)
}

func TestInstallCommand(t *testing.T) {
	cmd, ok := Python.InstallCommand([]string{"flask", "requests"})
	assert.True(t, ok)
	assert.Equal(t, []string{"pip", "install", "flask", "requests"}, cmd)

	cmd, ok = JavaScript.InstallCommand([]string{"express"})
	assert.True(t, ok)
	assert.Equal(t, []string{"npm", "install", "express"}, cmd)

	_, ok = Go.InstallCommand([]string{"x"})
	assert.False(t, ok)

	_, ok = Python.InstallCommand(nil)
	assert.False(t, ok)
}
