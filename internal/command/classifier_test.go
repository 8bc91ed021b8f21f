package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-gpt-go/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.Command
	}{
		{"chat prefix", "/chat Hello", model.Chat("Hello")},
		{"chat trims remainder", "/chat   How are you?  ", model.Chat("How are you?")},
		{"chat with empty remainder", "/chat    ", model.Chat("")},
		{"reset", "/reset", model.Reset()},
		{"reset trailing whitespace", "/reset  \n", model.Reset()},
		{"reset with argument is a message", "/reset now", model.PlainMessage("/reset now")},
		{"resetx is a message", "/resetx", model.PlainMessage("/resetx")},
		{"news", "/news", model.News()},
		{"news with trailing space is a message", "/news ", model.PlainMessage("/news ")},
		{"help", "/help", model.Help()},
		{"unknown slash command", "/foo bar", model.PlainMessage("/foo bar")},
		{"case sensitive", "/HELP", model.PlainMessage("/HELP")},
		{"bare chat without space", "/chat", model.PlainMessage("/chat")},
		{"plain text kept verbatim", "  hello there ", model.PlainMessage("  hello there ")},
		{"non ascii", "你好", model.PlainMessage("你好")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	for _, raw := range []string{"", " ", "\t\n", "　"} {
		_, err := Classify(raw)
		assert.ErrorIs(t, err, model.ErrEmptyInput, "input %q", raw)
	}
}

func TestHelpEntriesEnumerateCommands(t *testing.T) {
	entries := HelpEntries()

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
		assert.NotEmpty(t, e.Description, e.Name)
	}
	assert.ElementsMatch(t, []string{"chat", "reset", "news", "help"}, names)

	entries[0].Name = "mutated"
	assert.Equal(t, "chat", HelpEntries()[0].Name)
}

func TestHelpText(t *testing.T) {
	text := HelpText()
	assert.Contains(t, text, "/chat [message] - Chat with the AI assistant")
	assert.Contains(t, text, "/reset - Reset your conversation history")
	assert.Contains(t, text, "/news - Get the latest financial news")
	assert.Contains(t, text, "/help - Show this help message")
}
