// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"line-gpt-go/internal/config"
	"line-gpt-go/internal/handler"
	"line-gpt-go/internal/repository"
	"line-gpt-go/internal/router"
	"line-gpt-go/internal/service"
	"line-gpt-go/pkg/database"
	"line-gpt-go/pkg/kafka"
	"line-gpt-go/pkg/line"
	"line-gpt-go/pkg/llm"
	"line-gpt-go/pkg/log"
	"line-gpt-go/pkg/news"
	"line-gpt-go/pkg/storage"
	"line-gpt-go/pkg/token"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 初始化可选的存储后端，未配置时退化为内存实现或关闭对应功能
	var rdb *redis.Client
	var conversationRepo repository.ConversationRepository
	if cfg.Database.Redis.Addr != "" {
		var err error
		rdb, err = database.OpenRedis(rootCtx, cfg.Database.Redis)
		if err != nil {
			log.Fatal("初始化 Redis 失败", err)
		}
		defer rdb.Close()
		conversationRepo = repository.NewConversationRepository(rdb, cfg.Conversation.TTL)
	} else {
		log.Warnf("未配置 Redis，会话历史保存在进程内存中")
		conversationRepo = repository.NewMemoryConversationRepository()
	}

	var exchangeRepo repository.ExchangeRepository
	var recorder service.ExchangeRecorder
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.OpenMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			log.Fatal("初始化 MySQL 失败", err)
		}
		exchangeRepo = repository.NewExchangeRepository(db)
		recorder = service.NewExchangeRecorder(exchangeRepo, cfg.LLM.Model)
	}

	var archiver service.TranscriptArchiver
	if cfg.MinIO.Endpoint != "" {
		archive, err := storage.NewTranscriptArchive(rootCtx, cfg.MinIO)
		if err != nil {
			log.Fatal("初始化 MinIO 失败", err)
		}
		archiver = archive
	}

	// 4. 初始化外部服务客户端
	lineClient := line.NewClient(cfg.Line)
	llmClient := llm.NewClient(cfg.LLM)
	newsClient := news.NewClient(cfg.News)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	if !jwtManager.Enabled() {
		log.Warnf("未配置 jwt.secret，管理接口将拒绝所有请求")
	}

	// 5. 初始化 Service (依赖注入)
	conversationService := service.NewConversationService(conversationRepo)
	broadcastService := service.NewBroadcastService(lineClient, cfg.Broadcast.Concurrency, cfg.Broadcast.Timeout)
	dispatcher := service.NewDispatcher(
		service.OptionsFromConfig(cfg),
		conversationService,
		llmClient,
		newsClient,
		broadcastService,
		recorder,
		archiver,
	)
	recipients := cfg.Line.Recipients()
	newsService := service.NewNewsService(dispatcher, recipients)
	adminService := service.NewAdminService(cfg, conversationService, exchangeRepo, jwtManager)

	// 6. 广播任务：配置了 Kafka 时经由队列，否则在进程内执行
	var background sync.WaitGroup
	var publisher service.TaskPublisher = service.InlinePublisher{Processor: newsService}
	if len(kafka.Brokers(cfg.Kafka)) > 0 {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		publisher = producer

		background.Add(1)
		go func() {
			defer background.Done()
			kafka.StartConsumer(rootCtx, cfg.Kafka, rdb, newsService)
		}()
	}

	var scheduler *service.NewsScheduler
	if cfg.News.Enabled {
		var err error
		// 单次任务包含新闻获取与全部投递
		scheduler, err = service.NewNewsScheduler(cfg.News.ScheduleTime, publisher, cfg.News.Timeout+2*time.Minute)
		if err != nil {
			log.Fatal("初始化新闻调度失败", err)
		}
		scheduler.Start()
	}

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := router.New(router.Handlers{
		Health:       handler.NewHealthHandler(version),
		Webhook:      handler.NewWebhookHandler(dispatcher, lineClient),
		Admin:        handler.NewAdminHandler(adminService, dispatcher, newsService, recipients),
		Conversation: handler.NewConversationHandler(conversationService, dispatcher),
		Console:      handler.NewConsoleHandler(dispatcher, jwtManager),
	}, jwtManager, cfg.Line.ChannelSecret)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	if scheduler != nil {
		scheduler.Stop(ctx)
	}
	// 取消根上下文以结束 Kafka 消费循环
	cancelRoot()
	background.Wait()
	log.Info("服务已优雅关闭")
}
