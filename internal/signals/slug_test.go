package signals

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlugShape(t *testing.T) {
	alnum := regexp.MustCompile(`^[A-Za-z0-9]{10}$`)
	for i := 0; i < 100; i++ {
		slug, err := NewSlug()
		require.NoError(t, err)
		assert.Regexp(t, alnum, slug)
	}
}

func TestNewSlugUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		slug, err := NewSlug()
		require.NoError(t, err)
		if _, dup := seen[slug]; dup {
			t.Fatalf("duplicate slug generated: %s", slug)
		}
		seen[slug] = struct{}{}
	}
}
