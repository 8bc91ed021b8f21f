package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"line-gpt-go/internal/command"
	"line-gpt-go/internal/config"
	"line-gpt-go/internal/model"
	"line-gpt-go/pkg/llm"
	"line-gpt-go/pkg/log"
	"line-gpt-go/pkg/news"
)

// 用户可见的固定回复。
const (
	ChatFailureText     = "I apologize, but I encountered an error while processing your request. Please try again later."
	ResetText           = "Conversation history has been reset. You can start a new conversation now."
	NewsUnavailableText = "Unable to fetch financial news at this time. Please try again later."
	EmptyInputText      = "I received an empty message. Please try again."
	EmptyChatText       = "Please provide a message after /chat command."
)

const defaultBackendTimeout = 30 * time.Second

// Dispatcher 把分类后的命令路由到对应的处理逻辑并生成回复。
type Dispatcher interface {
	// Handle 是入站消息的唯一入口。输入为空时返回 model.ErrEmptyInput 以及一条提示回复。
	Handle(ctx context.Context, userID, raw string) (model.Reply, error)
	Dispatch(ctx context.Context, userID string, cmd model.Command) model.Reply
	// NewsDigest 获取并格式化最新新闻，供定时推送使用。
	NewsDigest(ctx context.Context) (string, error)
	Broadcast(ctx context.Context, userIDs []string, message string) model.BroadcastReport
}

// ExchangeRecorder 记录成功的问答交互。
type ExchangeRecorder interface {
	Record(ctx context.Context, userID, question, answer string)
}

// TranscriptArchiver 在重置前归档会话。
type TranscriptArchiver interface {
	Archive(ctx context.Context, conv model.Conversation) error
}

// DispatcherOptions 是 Dispatcher 使用的配置参数。
type DispatcherOptions struct {
	SystemPrompt   string
	LanguageHint   string
	Generation     *llm.GenerationParams
	MaxTurns       int
	ChatTimeout    time.Duration
	NewsTimeout    time.Duration
	// ArchiveTimeout 限制重置前归档会话的耗时
	ArchiveTimeout time.Duration
}

// OptionsFromConfig 从全局配置构建 DispatcherOptions。
func OptionsFromConfig(cfg config.Config) DispatcherOptions {
	return DispatcherOptions{
		SystemPrompt:   cfg.LLM.Prompt.System,
		LanguageHint:   cfg.LLM.Prompt.LanguageHint,
		Generation:     llm.ParamsFromConfig(cfg.LLM),
		MaxTurns:       cfg.Conversation.MaxTurns,
		ChatTimeout:    cfg.LLM.Timeout,
		NewsTimeout:    cfg.News.Timeout,
		ArchiveTimeout: cfg.MinIO.Timeout,
	}
}

type dispatcher struct {
	opts          DispatcherOptions
	conversations ConversationService
	llmClient     llm.Client
	newsClient    news.Client
	broadcaster   BroadcastService
	recorder      ExchangeRecorder
	archiver      TranscriptArchiver
}

// NewDispatcher 创建一个新的 Dispatcher。recorder 与 archiver 可以为 nil。
func NewDispatcher(
	opts DispatcherOptions,
	conversations ConversationService,
	llmClient llm.Client,
	newsClient news.Client,
	broadcaster BroadcastService,
	recorder ExchangeRecorder,
	archiver TranscriptArchiver,
) Dispatcher {
	if opts.ChatTimeout <= 0 {
		opts.ChatTimeout = defaultBackendTimeout
	}
	if opts.NewsTimeout <= 0 {
		opts.NewsTimeout = defaultBackendTimeout
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = defaultBackendTimeout
	}
	return &dispatcher{
		opts:          opts,
		conversations: conversations,
		llmClient:     llmClient,
		newsClient:    newsClient,
		broadcaster:   broadcaster,
		recorder:      recorder,
		archiver:      archiver,
	}
}

func (d *dispatcher) Handle(ctx context.Context, userID, raw string) (model.Reply, error) {
	cmd, err := command.Classify(raw)
	if err != nil {
		log.Warnf("收到无法分类的消息, user: %s, error: %v", userID, err)
		return model.Reply{UserID: userID, Text: EmptyInputText}, err
	}
	log.Infow("处理入站消息", "user", userID, "command", cmd.Kind.String())
	return d.Dispatch(ctx, userID, cmd), nil
}

func (d *dispatcher) Dispatch(ctx context.Context, userID string, cmd model.Command) model.Reply {
	var reply model.Reply
	switch cmd.Kind {
	case model.CommandChat, model.CommandPlainMessage:
		reply = d.handleChat(ctx, userID, cmd.Text)
	case model.CommandReset:
		reply = d.handleReset(ctx, userID)
	case model.CommandNews:
		reply = d.handleNews(ctx)
	case model.CommandHelp:
		reply = model.Reply{Text: command.HelpText()}
	default:
		// 新增的 CommandKind 必须在这里显式处理
		log.Errorw("未处理的命令类型", "user", userID, "kind", int(cmd.Kind))
		reply = model.Reply{Text: ChatFailureText, Degraded: true}
	}
	reply.UserID = userID
	reply.Command = cmd.Kind
	return reply
}

func (d *dispatcher) handleChat(ctx context.Context, userID, text string) model.Reply {
	if strings.TrimSpace(text) == "" {
		return model.Reply{Text: EmptyChatText}
	}

	history, err := d.conversations.AppendAndSnapshot(ctx, userID, model.NewTurn(model.RoleUser, text))
	if err != nil {
		log.Errorf("写入用户消息失败, user: %s, error: %v", userID, err)
		return model.Reply{Text: ChatFailureText, Degraded: true}
	}
	defer d.truncate(userID)

	// 网络调用不持有会话锁
	callCtx, cancel := context.WithTimeout(ctx, d.opts.ChatTimeout)
	defer cancel()
	answer, err := d.llmClient.Complete(callCtx, d.composeMessages(history, text), d.opts.Generation)
	if err != nil {
		var be *model.BackendError
		if errors.As(err, &be) {
			log.Errorw("聊天后端调用失败", "user", userID, "status", be.Status, "error", be.Message)
		} else {
			log.Errorw("聊天后端调用失败", "user", userID, "error", err)
		}
		return model.Reply{Text: ChatFailureText, Degraded: true}
	}

	if err := d.conversations.Append(ctx, userID, model.NewTurn(model.RoleAssistant, answer)); err != nil {
		log.Errorf("写入助手消息失败, user: %s, error: %v", userID, err)
	}
	if d.recorder != nil {
		d.recorder.Record(ctx, userID, text, answer)
	}
	return model.Reply{Text: answer}
}

func (d *dispatcher) truncate(userID string) {
	if d.opts.MaxTurns <= 0 {
		return
	}
	// 使用后台上下文，即使请求已取消也要维持截断策略
	if err := d.conversations.Truncate(context.Background(), userID, d.opts.MaxTurns); err != nil {
		log.Errorf("截断会话历史失败, user: %s, error: %v", userID, err)
	}
}

func (d *dispatcher) composeMessages(history []model.Turn, latest string) []llm.Message {
	system := d.opts.SystemPrompt
	if d.opts.LanguageHint != "" && hasNonASCII(latest) {
		system = strings.TrimSpace(system + " " + d.opts.LanguageHint)
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, llm.Message{Role: string(model.RoleSystem), Content: system})
	}
	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}

func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}

func (d *dispatcher) handleReset(ctx context.Context, userID string) model.Reply {
	if d.archiver != nil {
		conv, err := d.conversations.Get(ctx, userID)
		if err != nil {
			log.Errorf("读取待归档会话失败, user: %s, error: %v", userID, err)
		} else if len(conv.Turns) > 0 {
			archiveCtx, cancel := context.WithTimeout(ctx, d.opts.ArchiveTimeout)
			if err := d.archiver.Archive(archiveCtx, conv); err != nil {
				log.Errorf("归档会话失败, user: %s, error: %v", userID, err)
			}
			cancel()
		}
	}
	if err := d.conversations.Clear(ctx, userID); err != nil {
		log.Errorf("重置会话失败, user: %s, error: %v", userID, err)
		return model.Reply{Text: ChatFailureText, Degraded: true}
	}
	log.Infof("已重置用户 %s 的会话", userID)
	return model.Reply{Text: ResetText}
}

func (d *dispatcher) handleNews(ctx context.Context) model.Reply {
	digest, err := d.NewsDigest(ctx)
	if err != nil {
		return model.Reply{Text: NewsUnavailableText, Degraded: true}
	}
	return model.Reply{Text: digest}
}

func (d *dispatcher) NewsDigest(ctx context.Context) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.NewsTimeout)
	defer cancel()
	items, err := d.newsClient.FetchLatest(callCtx)
	if err != nil {
		log.Errorf("获取财经新闻失败: %v", err)
		return "", err
	}
	return news.Format(items), nil
}

func (d *dispatcher) Broadcast(ctx context.Context, userIDs []string, message string) model.BroadcastReport {
	return d.broadcaster.Broadcast(ctx, userIDs, message)
}
