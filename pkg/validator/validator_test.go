package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required,notblank"`
}

func TestValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		req     *chatRequest
		wantErr bool
	}{
		{name: "合法请求", req: &chatRequest{Message: "hello"}},
		{name: "缺少 message", req: &chatRequest{}, wantErr: true},
		{name: "空白 message", req: &chatRequest{Message: " \t\n"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.NoError(t, v.ValidateStruct(nil))
	assert.NoError(t, v.ValidateStruct("not a struct"))
	assert.NoError(t, v.ValidateStruct((*chatRequest)(nil)))
}

func TestTranslate(t *testing.T) {
	v := New()
	err := v.ValidateStruct(&chatRequest{Message: "  "})
	require.Error(t, err)

	assert.Equal(t, "message must not be blank", v.Translate(err, LangEN))
	assert.Equal(t, "message不能为空白", v.Translate(err, LangZH))
	assert.Equal(t, "message must not be blank", v.Translate(err, "fr"))

	err = v.ValidateStruct(&chatRequest{})
	require.Error(t, err)
	assert.Equal(t, "message is a required field", v.Translate(err, LangEN))

	assert.Equal(t, "boom", v.Translate(errors.New("boom"), LangEN))
}

func TestLangFromHeader(t *testing.T) {
	assert.Equal(t, LangZH, LangFromHeader("zh-CN,zh;q=0.9,en;q=0.8"))
	assert.Equal(t, LangEN, LangFromHeader("en-US,en;q=0.9"))
	assert.Equal(t, LangEN, LangFromHeader(""))
}
