package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"wenjuan/eventing"
)

type somethingHappened struct {
	Name string `json:"name"`
}

func TestRegistry_RegisterAndDecode(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("test.happened", func() any { return &somethingHappened{} }))
	require.True(t, r.IsRegistered("test.happened"))

	// 重复注册被拒绝
	require.Error(t, r.Register("test.happened", func() any { return &somethingHappened{} }))

	evt, err := eventing.NewEvent(uuid.New(), "Test", "test.happened", 1, somethingHappened{Name: "alice"})
	require.NoError(t, err)

	decoded, err := r.Decode(evt)
	require.NoError(t, err)
	payload, ok := decoded.(*somethingHappened)
	require.True(t, ok)
	require.Equal(t, "alice", payload.Name)
}

func TestRegistry_UnknownTypeIsFatal(t *testing.T) {
	r := NewRegistry()

	evt, err := eventing.NewEvent(uuid.New(), "Test", "test.unknown", 1, somethingHappened{})
	require.NoError(t, err)

	_, decodeErr := r.Decode(evt)
	require.Error(t, decodeErr)

	var unknownErr *eventing.UnknownEventTypeError
	require.ErrorAs(t, decodeErr, &unknownErr)
}

func TestRegistry_Alias(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("questionnaire.created", func() any { return &somethingHappened{} }))

	// 别名必须指向已注册的正式标签
	require.Error(t, r.RegisterAlias("legacy.created", "missing.type"))
	require.NoError(t, r.RegisterAlias("survey.created", "questionnaire.created"))

	// 别名不能与正式标签冲突
	require.Error(t, r.RegisterAlias("questionnaire.created", "questionnaire.created"))

	// 旧标签事件解码到新类型
	evt, err := eventing.NewEvent(uuid.New(), "Test", "survey.created", 1, somethingHappened{Name: "old"})
	require.NoError(t, err)

	decoded, err := r.Decode(evt)
	require.NoError(t, err)
	payload, ok := decoded.(*somethingHappened)
	require.True(t, ok)
	require.Equal(t, "old", payload.Name)
}
