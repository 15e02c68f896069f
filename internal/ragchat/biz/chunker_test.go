package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragchat/pkg/errors"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		size  int
		sizes []int
	}{
		{name: "250 字符按 100 切分", text: strings.Repeat("a", 250), size: 100, sizes: []int{100, 100, 50}},
		{name: "整除", text: strings.Repeat("b", 200), size: 100, sizes: []int{100, 100}},
		{name: "短于块大小", text: "hello", size: 100, sizes: []int{5}},
		{name: "空文本", text: "", size: 100, sizes: []int{}},
		{name: "多字节字符不被截断", text: strings.Repeat("向量", 5), size: 3, sizes: []int{3, 3, 3, 1}},
		{name: "空白不特殊处理", text: "a b c d", size: 2, sizes: []int{2, 2, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := SplitText(tt.text, tt.size)
			require.NoError(t, err)
			require.Len(t, chunks, len(tt.sizes))

			var sb strings.Builder
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, tt.sizes[i], len([]rune(c.Text)))
				sb.WriteString(c.Text)
			}
			assert.Equal(t, tt.text, sb.String())
		})
	}
}

func TestSplitTextInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := SplitText("text", size)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	}
}
