package compiler

import (
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dualbuild/internal/tsconfig"
)

func TestNewSettings_JSXModes(t *testing.T) {
	tests := []struct {
		mode string
		want api.JSX
		dev  bool
	}{
		{"react", api.JSXTransform, false},
		{"react-jsx", api.JSXAutomatic, false},
		{"react-jsxdev", api.JSXAutomatic, true},
		{"preserve", api.JSXPreserve, false},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			s, err := newSettings(tsconfig.Options{"jsx": tt.mode}, "src/index.tsx")
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.jsx)
			assert.Equal(t, tt.dev, s.jsxDev)
			assert.Equal(t, tt.want, s.transformOptions("src/index.tsx").JSX)
		})
	}
}
