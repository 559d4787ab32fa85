package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"docflow-backend/internal/api"
	"docflow-backend/internal/client"
	"docflow-backend/internal/model"
	"docflow-backend/pkg/logger"
)

// reviewer 是命令行评审工具：创建文档后通过 WebSocket 逐段审阅，
// 交互模式下从标准输入读指令，-auto 模式下自动放行所有章节。
func main() {
	var (
		serverURL string
		userQuery string
		tmplName  string
		auto      bool
		logLevel  string
	)
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "后端地址")
	flag.StringVar(&userQuery, "query", "", "文档主题（必填）")
	flag.StringVar(&tmplName, "template", "Technical Blog", "文档模板")
	flag.BoolVar(&auto, "auto", false, "自动放行所有章节")
	flag.StringVar(&logLevel, "log-level", "warn", "日志级别")
	flag.Parse()

	if userQuery == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := logger.Init(logLevel, "text"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	apiClient := api.NewClient(serverURL)

	templates, err := apiClient.FetchTemplates()
	if err != nil {
		log.Fatalf("获取模板列表失败: %v", err)
	}
	fmt.Printf("可用模板: %s\n", strings.Join(templates, ", "))

	documentID, err := apiClient.CreateDocument(userQuery, tmplName)
	if err != nil {
		log.Fatalf("创建文档失败: %v", err)
	}
	fmt.Printf("文档已创建: %s\n", documentID)

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	dispatcher := client.NewDispatcher()
	conn := client.NewConn(wsURL, dispatcher)

	session := client.NewSession(documentID, conn, dispatcher)
	defer session.Close(dispatcher)

	// 新章节到达时打印出来
	arrived := make(chan struct{}, 16)
	sub := dispatcher.Subscribe(model.KindSectionContent, func(msg model.ServerMessage) {
		fmt.Printf("\n=== %s ===\n%s\n", msg.SectionName, msg.Content)
		select {
		case arrived <- struct{}{}:
		default:
		}
	})
	defer dispatcher.Unsubscribe(sub)

	done := make(chan struct{})
	completeSub := dispatcher.Subscribe(model.KindDocumentComplete, func(model.ServerMessage) {
		close(done)
	})
	defer dispatcher.Unsubscribe(completeSub)

	if err := conn.Connect(documentID); err != nil {
		log.Fatalf("连接失败: %v", err)
	}
	defer conn.Disconnect()

	if auto {
		runAuto(session, arrived, done)
		return
	}
	runInteractive(session, done)
}

func runAuto(session *client.Session, arrived <-chan struct{}, done <-chan struct{}) {
	for {
		select {
		case <-arrived:
			// 给服务端一点时间把后续帧发完
			time.Sleep(100 * time.Millisecond)
			if err := session.RequestContinue(); err != nil {
				logger.Debugf("continue 被拒绝: %v", err)
			}
		case <-done:
			fmt.Println("\n文档评审完成")
			return
		case <-time.After(5 * time.Minute):
			fmt.Println("\n等待超时，退出")
			return
		}
	}
}

func runInteractive(session *client.Session, done <-chan struct{}) {
	fmt.Println("\n指令: c=放行下一段  e=编辑当前段  s=查看状态  q=退出")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for {
		select {
		case <-done:
			fmt.Println("\n文档评审完成")
			return
		default:
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "c":
			if err := session.RequestContinue(); err != nil {
				fmt.Printf("无法放行: %v\n", err)
			}
		case "e":
			if err := session.RequestEdit(); err != nil {
				fmt.Printf("无法进入编辑: %v\n", err)
				continue
			}
			fmt.Println("输入新内容（单行）:")
			if !scanner.Scan() {
				return
			}
			if err := session.SubmitEdit(session.Cursor(), scanner.Text()); err != nil {
				fmt.Printf("提交编辑失败: %v\n", err)
			} else {
				fmt.Println("已提交")
			}
		case "s":
			printStatus(session)
		case "q":
			return
		case "":
		default:
			fmt.Println("未知指令")
		}
	}
}

func printStatus(session *client.Session) {
	sections := session.Sections()
	fmt.Printf("模板: %s  章节数: %d  游标: %d  流状态: %s\n",
		session.Template(), len(sections), session.Cursor(), session.Status())
	for i, sec := range sections {
		marker := " "
		if i == session.Cursor() {
			marker = ">"
		}
		lock := ""
		if !sec.Editable {
			lock = " [锁定]"
		}
		fmt.Printf(" %s %d. %s%s\n", marker, i+1, sec.Name, lock)
	}
	if session.FullyReviewed() {
		fmt.Println("所有章节已评审完毕")
	}
}
