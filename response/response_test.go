package response

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func makeAnswers(t *testing.T, values ...Value) []Answer {
	t.Helper()
	answers := make([]Answer, 0, len(values))
	for _, v := range values {
		a, err := NewAnswer(uuid.New(), uuid.New(), v)
		require.NoError(t, err)
		answers = append(answers, a)
	}
	return answers
}

func TestSubmit(t *testing.T) {
	respondent, err := Identified("user", "42")
	require.NoError(t, err)

	answers := makeAnswers(t, StringValue("满意"), NumberValue(8))
	r, err := Submit(uuid.New(), uuid.New(), respondent, "203.0.113.9", "curl/8.0", answers,
		map[string]any{"channel": "web"})
	require.NoError(t, err)
	require.Equal(t, 2, r.AnswerCount())
	require.Equal(t, "user:42", r.Respondent().Key())
	require.Equal(t, uint64(1), r.GetVersion())
	require.Len(t, r.GetUncommittedEvents(), 1)
	require.False(t, r.SubmittedAt().IsZero())
}

func TestSubmit_Validation(t *testing.T) {
	answers := makeAnswers(t, StringValue("x"))

	// 问卷ID必填
	_, err := Submit(uuid.New(), uuid.Nil, Anonymous(), "", "", answers, nil)
	require.Error(t, err)

	// 无效IP
	_, err = Submit(uuid.New(), uuid.New(), Anonymous(), "not-an-ip", "", answers, nil)
	require.Error(t, err)

	// 空答卷
	_, err = Submit(uuid.New(), uuid.New(), Anonymous(), "", "", nil, nil)
	require.Error(t, err)

	// 同一题目重复作答
	dup := answers[0]
	dup.ID = uuid.New()
	_, err = Submit(uuid.New(), uuid.New(), Anonymous(), "", "", append(answers, dup), nil)
	require.Error(t, err)

	// 身份半填
	_, err = Submit(uuid.New(), uuid.New(), Respondent{Type: "user"}, "", "", answers, nil)
	require.Error(t, err)
}

func TestReplaceAnswer(t *testing.T) {
	answers := makeAnswers(t, NumberValue(3))
	r, err := Submit(uuid.New(), uuid.New(), Anonymous(), "", "", answers, nil)
	require.NoError(t, err)

	questionID := answers[0].QuestionID
	require.NoError(t, r.ReplaceAnswer(questionID, NumberValue(9)))

	a, ok := r.Answer(questionID)
	require.True(t, ok)
	n, _ := a.Value.AsNumber()
	require.Equal(t, 9.0, n)
	require.Equal(t, uint64(2), r.GetVersion())

	// 不存在的题目
	require.Error(t, r.ReplaceAnswer(uuid.New(), NumberValue(1)))
}

func TestValue_JSONShapePreserved(t *testing.T) {
	cases := []struct {
		value Value
		json  string
	}{
		{StringValue("满意"), `"满意"`},
		{NumberValue(7.5), `7.5`},
		{BoolValue(true), `true`},
		{ListValue([]string{"a", "b"}), `["a","b"]`},
	}
	for _, tc := range cases {
		data, err := json.Marshal(tc.value)
		require.NoError(t, err)
		require.JSONEq(t, tc.json, string(data))

		var restored Value
		require.NoError(t, json.Unmarshal(data, &restored))
		require.Equal(t, tc.value.Kind(), restored.Kind())
		require.Equal(t, tc.value.Raw(), restored.Raw())
	}
}

func TestValue_FromRaw(t *testing.T) {
	v, err := FromRaw([]any{"x", "y"})
	require.NoError(t, err)
	require.Equal(t, ValueKindList, v.Kind())

	_, err = FromRaw([]any{"x", 1.0})
	require.Error(t, err)

	_, err = FromRaw(map[string]any{"nested": true})
	require.Error(t, err)
}

func TestRespondent_Key(t *testing.T) {
	require.Equal(t, "anonymous", Anonymous().Key())

	r, err := Identified(" user ", " 42 ")
	require.NoError(t, err)
	require.Equal(t, "user:42", r.Key())

	_, err = Identified("", "42")
	require.Error(t, err)
}
