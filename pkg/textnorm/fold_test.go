package textnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/Bandejas-api/pkg/textnorm"
)

func TestFold_IgnoraMayusculasYEspacios(t *testing.T) {
	assert.Equal(t, textnorm.Fold("reparación"), textnorm.Fold("  REPARACIÓN "))
	assert.True(t, textnorm.Equal("Hair", "hair"))
	assert.False(t, textnorm.Equal("Hair", "Repair"))
	assert.Equal(t, "", textnorm.Fold("   "))
}

func TestFold_ComponeFormasUnicode(t *testing.T) {
	// "é" precompuesta (U+00E9) frente a "e" + acento combinado (U+0301)
	assert.True(t, textnorm.Equal("caf\u00e9", "cafe\u0301"))
}
