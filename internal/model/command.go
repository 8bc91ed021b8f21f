package model

// CommandKind 标识 Command 的变体。
type CommandKind int

const (
	CommandPlainMessage CommandKind = iota
	CommandChat
	CommandReset
	CommandNews
	CommandHelp
)

func (k CommandKind) String() string {
	switch k {
	case CommandChat:
		return "chat"
	case CommandReset:
		return "reset"
	case CommandNews:
		return "news"
	case CommandHelp:
		return "help"
	default:
		return "message"
	}
}

// Command 是对一条入站文本分类后的结果。Text 仅对 Chat 与 PlainMessage 有意义。
type Command struct {
	Kind CommandKind
	Text string
}

func Chat(text string) Command         { return Command{Kind: CommandChat, Text: text} }
func PlainMessage(text string) Command { return Command{Kind: CommandPlainMessage, Text: text} }
func Reset() Command                   { return Command{Kind: CommandReset} }
func News() Command                    { return Command{Kind: CommandNews} }
func Help() Command                    { return Command{Kind: CommandHelp} }
