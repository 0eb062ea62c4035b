package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSensitive(t *testing.T) {
	out := MaskSensitive(map[string]any{
		"email":      "ops@harbor.example",
		"permission": "CREATE_TASK",
		"nested":     map[string]any{"phone": "+6281234"},
		"":           "dropped",
	})
	assert.Equal(t, "****mple", out["email"])
	assert.Equal(t, "CREATE_TASK", out["permission"])
	assert.Equal(t, map[string]any{"phone": "****1234"}, out["nested"])
	assert.NotContains(t, out, "")
	assert.Nil(t, MaskSensitive(nil))
	assert.Equal(t, "****", MaskSecret("abc"))
}
