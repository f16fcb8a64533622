package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("missing field", nil), KindValidation},
		{"upstream", Upstream("completion failed", errors.New("boom")), KindUpstream},
		{"persistence", Persistence("insert failed", errors.New("boom")), KindPersistence},
		{"data quality", DataQuality("bad enum", nil), KindDataQuality},
		{"plain error", errors.New("boom"), KindInternal},
		{"wrapped fault", fmt.Errorf("outer: %w", Upstream("inner", nil)), KindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "missing field", MessageOf(Validation("missing field", nil)))
	assert.Equal(t, "internal error", MessageOf(errors.New("raw")))
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("db down")
	err := Persistence("insert failed", inner)
	assert.ErrorIs(t, err, inner)
	assert.True(t, Is(err, KindPersistence))
	assert.False(t, Is(err, KindUpstream))
}
