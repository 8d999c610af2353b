package main

import (
	"fmt"
	"log"

	"github.com/packflow/internal/config"
	"github.com/packflow/internal/db"
	"github.com/packflow/internal/service"
)

// 测试数据生成器
func main() {
	// 初始化数据库
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	createTestBriefs()
	createTestPacks()

	fmt.Println("测试数据生成完成！")
	fmt.Println("选题: 3 份测试 Brief")
	fmt.Println("内容包: 每份 Brief 一个，含草稿首版本")
}

// 创建测试选题
func createTestBriefs() {
	// 检查是否已存在选题
	var count int64
	db.DB.Model(&db.Brief{}).Count(&count)
	if count > 0 {
		fmt.Println("选题已存在，跳过创建")
		return
	}

	briefs := []db.Brief{
		{
			Topic:    "Go 服务的优雅退出",
			Audience: "后端工程师",
			Keywords: "graceful shutdown, context, signal",
			Angle:    "从一次线上事故讲起",
			Style:    "技术教程",
		},
		{
			Topic:    "内容团队的版本管理",
			Audience: "内容运营",
			Keywords: "版本, 审批, 发布",
			Angle:    "流程落地经验",
			Style:    "经验分享",
		},
		{
			Topic:    "邮件营销的主题行写作",
			Audience: "市场营销",
			Keywords: "email, open rate, subject line",
			Angle:    "数据驱动的写法",
			Style:    "清单体",
		},
	}
	for i := range briefs {
		db.DB.Create(&briefs[i])
	}

	fmt.Println("✅ 测试选题创建完成")
}

// 为每份选题创建内容包，走服务层以保证版本账本一致
func createTestPacks() {
	var count int64
	db.DB.Model(&db.ContentPack{}).Count(&count)
	if count > 0 {
		fmt.Println("内容包已存在，跳过创建")
		return
	}

	var briefs []db.Brief
	if err := db.DB.Find(&briefs).Error; err != nil {
		log.Fatal("查询选题失败:", err)
	}

	packs := service.NewPackService(db.DB)
	for _, brief := range briefs {
		draft := fmt.Sprintf("# %s\n\n这是为「%s」准备的演示草稿正文。\n\n核心关键词：%s。", brief.Topic, brief.Audience, brief.Keywords)
		if _, err := packs.CreateFromBrief(brief.ID, draft, "seed-script"); err != nil {
			log.Fatalf("创建内容包失败 (brief %d): %v", brief.ID, err)
		}
	}

	fmt.Println("✅ 测试内容包创建完成")
}
