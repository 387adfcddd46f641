package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wenjuan/errors"
)

func TestValidateRequired(t *testing.T) {
	require.NoError(t, ValidateRequired("标题", "title"))
	require.Error(t, ValidateRequired("", "title"))
	// 纯空白视为空
	require.Error(t, ValidateRequired("   ", "title"))
}

func TestValidateStringLength(t *testing.T) {
	// 按字符数而非字节数计长
	require.NoError(t, ValidateStringLength("满意度调查", "title", 1, 5))
	require.Error(t, ValidateStringLength("满意度调查问卷", "title", 1, 5))
	require.Error(t, ValidateStringLength("", "title", 1, 5))
	// max 为 0 表示不设上限
	require.NoError(t, ValidateStringLength("任意长度的很长很长的标题", "title", 1, 0))
}

func TestValidateIntRange(t *testing.T) {
	require.NoError(t, ValidateIntRange(5, "count", 1, 10))
	require.NoError(t, ValidateIntRange(1, "count", 1, 10))
	require.NoError(t, ValidateIntRange(10, "count", 1, 10))
	require.Error(t, ValidateIntRange(0, "count", 1, 10))
	require.Error(t, ValidateIntRange(11, "count", 1, 10))
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, ValidateEmail("alice@example.com"))
	require.NoError(t, ValidateEmail("a.b+tag@sub.example.cn"))

	for _, bad := range []string{"", "alice", "alice@", "@example.com", "alice@example"} {
		err := ValidateEmail(bad)
		require.True(t, errors.IsCode(err, errors.ErrCodeValidation), "email: %q", bad)
	}
}

func TestValidateIP(t *testing.T) {
	require.NoError(t, ValidateIP("203.0.113.9"))
	require.NoError(t, ValidateIP("2001:db8::1"))
	require.Error(t, ValidateIP("999.0.0.1"))
	require.Error(t, ValidateIP("not-an-ip"))
}

func TestValidateOneOf(t *testing.T) {
	allowed := []string{"draft", "published", "closed"}
	require.NoError(t, ValidateOneOf("draft", "status", allowed))
	require.Error(t, ValidateOneOf("archived", "status", allowed))
}
