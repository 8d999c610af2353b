package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/packflow/internal/config"
	"github.com/packflow/internal/db"
	"github.com/packflow/internal/handler"
	"github.com/packflow/internal/platform"
	"github.com/packflow/internal/router"
)

func main() {
	// .env 文件是可选的，缺失时直接使用进程环境变量
	_ = godotenv.Load()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 只注册配置了凭据的发布平台
	publishers := make(map[string]platform.Publisher)
	if cfg.MailchimpAPIKey != "" && cfg.MailchimpListID != "" {
		publishers[platform.KindMailchimp] = platform.NewMailchimpPublisher(platform.MailchimpConfig{
			APIKey:   cfg.MailchimpAPIKey,
			ListID:   cfg.MailchimpListID,
			FromName: cfg.MailchimpFromName,
			ReplyTo:  cfg.MailchimpReplyTo,
		})
	}
	if cfg.WordPressBaseURL != "" && cfg.WordPressUsername != "" {
		publishers[platform.KindWordPress] = platform.NewWordPressPublisher(platform.WordPressConfig{
			BaseURL:     cfg.WordPressBaseURL,
			Username:    cfg.WordPressUsername,
			AppPassword: cfg.WordPressAppPassword,
		})
	}

	api := handler.NewAPI(db.DB, publishers)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
