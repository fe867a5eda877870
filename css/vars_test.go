package css_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmix/css"
)

func TestReplaceVars(t *testing.T) {
	values := map[string]string{"color": "red", "size": "10px", "a-b": "x"}
	tests := []struct {
		in, want string
	}{
		{in: "$color", want: "red"},
		{in: "1px solid $color", want: "1px solid red"},
		{in: "calc($size * 2)", want: "calc(10px * 2)"},
		{in: "$(size)em", want: "10pxem"},
		{in: "$( color )", want: "red"},
		{in: "$a-b", want: "x"},
		{in: "$unknown", want: "$unknown"},
		{in: "$(unknown)", want: "$(unknown)"},
		{in: "a$color", want: "a$color"},
		{in: "no vars", want: "no vars"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, css.ReplaceVars(tt.in, values))
		})
	}
}

func TestSubstituteVars_Tree(t *testing.T) {
	root, err := css.Parse([]byte(`.icon-$(name) { $prop: $value; @media $media { b { color: $value } } }`), "")
	require.NoError(t, err)

	css.SubstituteVars(root, map[string]string{"name": "ok", "prop": "color", "value": "green", "media": "print"})

	want := `.icon-ok {
  color: green;
  @media print {
    b {
      color: green;
    }
  }
}
`
	assert.Equal(t, want, root.String())
}
