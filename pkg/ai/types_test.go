package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplyNormalize(t *testing.T) {
	cases := []struct {
		name  string
		reply Reply
		want  string
	}{
		{name: "text", reply: TextReply("Yes, it is."), want: "Yes, it is."},
		{name: "blocks", reply: BlocksReply(Block{Type: "text", Text: "Yes"}, Block{Type: "tool_use"}, Block{Type: "text", Text: "done"}), want: "Yes  done"},
		{name: "empty_blocks", reply: BlocksReply(), want: ""},
		{name: "object", reply: ObjectReply(map[string]interface{}{"is_complaint": true}), want: `{"is_complaint":true}`},
		{name: "nil_object", reply: ObjectReply(nil), want: ""},
		{name: "zero", reply: Reply{}, want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.reply.Normalize())
		})
	}
}

func TestMessageBuilders(t *testing.T) {
	require.Equal(t, Message{Role: RoleSystem, Content: "a"}, System("a"))
	require.Equal(t, Message{Role: RoleUser, Content: "b"}, User("b"))
	require.Equal(t, "user", openAIRole("unknown"))
}
