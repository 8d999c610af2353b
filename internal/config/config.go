package config

import (
	"fmt"
	"os"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabasePath  string
	SessionSecret string
	GinMode       string

	MailchimpAPIKey   string
	MailchimpListID   string
	MailchimpFromName string
	MailchimpReplyTo  string

	WordPressBaseURL     string
	WordPressUsername    string
	WordPressAppPassword string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 平台凭据没有默认值，缺省时对应的发布通道不会启用。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "packflow.db"
	}

	sessionSecret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if sessionSecret == "" {
		sessionSecret = "packflow-dev-secret"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		DatabasePath:  databasePath,
		SessionSecret: sessionSecret,
		GinMode:       ginMode,

		MailchimpAPIKey:   strings.TrimSpace(os.Getenv("MAILCHIMP_API_KEY")),
		MailchimpListID:   strings.TrimSpace(os.Getenv("MAILCHIMP_LIST_ID")),
		MailchimpFromName: strings.TrimSpace(os.Getenv("MAILCHIMP_FROM_NAME")),
		MailchimpReplyTo:  strings.TrimSpace(os.Getenv("MAILCHIMP_REPLY_TO")),

		WordPressBaseURL:     strings.TrimSpace(os.Getenv("WORDPRESS_BASE_URL")),
		WordPressUsername:    strings.TrimSpace(os.Getenv("WORDPRESS_USERNAME")),
		WordPressAppPassword: strings.TrimSpace(os.Getenv("WORDPRESS_APP_PASSWORD")),
	}
}
