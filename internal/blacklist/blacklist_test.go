package blacklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionMatches(t *testing.T) {
	item, err := NewExtension("pem")
	require.NoError(t, err)
	assert.Equal(t, KindExtension, item.Kind())

	assert.True(t, item.Matches("something", "pem"))
	assert.False(t, item.Matches("something.pem", "pub"))
	assert.False(t, item.Matches("something", "PEM"))
	assert.False(t, item.Matches("something", ".pem"))
}

func TestPathMatchesWholeComponent(t *testing.T) {
	testCases := []struct {
		name    string
		segment string
		path    string
		want    bool
	}{
		{name: "inner component", segment: "tests", path: "/a/b/s/tests/f/c.java", want: true},
		{name: "substring of component", segment: "tests", path: "a/b/notests/f/a.java", want: false},
		{name: "prefix of component", segment: "tests", path: "a/testsuite/a.java", want: false},
		{name: "leading component without slash", segment: "tests", path: "tests/a.java", want: false},
		{name: "leading component with slash", segment: "tests", path: "/tests/a.java", want: true},
		{name: "final component", segment: "tests", path: "a/b/tests", want: false},
		{name: "ignore dir scenario", segment: "test", path: "ignore/test/dir/a.java", want: true},
		{name: "multi component segment", segment: "vendor/github.com", path: "src/vendor/github.com/x/a.go", want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			item, err := NewPath(tc.segment)
			require.NoError(t, err)
			assert.Equal(t, tc.want, item.Matches(tc.path, "java"))
		})
	}
}

func TestNewRejectsInvalidEntries(t *testing.T) {
	_, err := NewExtension("")
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = NewPath("")
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = NewPath("tests(")
	assert.Error(t, err)
}

func TestAnyMatches(t *testing.T) {
	ext, err := NewExtension("jpg")
	require.NoError(t, err)
	path, err := NewPath("fixtures")
	require.NoError(t, err)
	items := []Item{ext, path}

	assert.True(t, AnyMatches(items, "send/nudes.jpg", "jpg"))
	assert.True(t, AnyMatches(items, "src/fixtures/key.pem", "pem"))
	assert.False(t, AnyMatches(items, "src/key.pem", "pem"))
	assert.False(t, AnyMatches(nil, "src/key.pem", "pem"))
}
