// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"line-gpt-go/internal/config"
	"line-gpt-go/internal/model"
	"line-gpt-go/pkg/log"
)

// TranscriptArchive 把重置前的会话以 JSON 形式上传到 MinIO。
type TranscriptArchive struct {
	client *minio.Client
	bucket string
}

// NewTranscriptArchive 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewTranscriptArchive(ctx context.Context, cfg config.MinIOConfig) (*TranscriptArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", cfg.BucketName)
	}
	return &TranscriptArchive{client: client, bucket: cfg.BucketName}, nil
}

// ObjectName 返回归档对象的路径，按用户分目录。
func ObjectName(userID string, at time.Time) string {
	return fmt.Sprintf("transcripts/%s/%s.json", userID, at.UTC().Format("20060102T150405.000Z"))
}

// Archive 上传一份会话快照。
func (a *TranscriptArchive) Archive(ctx context.Context, conv model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}
	name := ObjectName(conv.UserID, time.Now())
	_, err = a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("上传会话归档失败: %w", err)
	}
	log.Infof("会话已归档: %s/%s (%d 条消息)", a.bucket, name, len(conv.Turns))
	return nil
}
