package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"friend-chat/config"
	dbPkg "friend-chat/pkg/db"

	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

// 按外键依赖顺序清空
var tables = []string{"message", "friendship", "user"}

func main() {
	configPath := pflag.StringP("config", "c", config.DefaultPath, "配置文件路径")
	yes := pflag.BoolP("yes", "y", false, "跳过确认提示")
	pflag.Parse()

	cfg := config.LoadConfigFrom(*configPath)

	driver := cfg.Database.Driver
	if driver == "" {
		driver = "mysql"
	}
	fmt.Printf("将清空 %s 数据库 %s 中的所有数据: %s\n", driver, cfg.Database.Database, strings.Join(tables, ", "))

	if !*yes && !confirm() {
		fmt.Println("已取消")
		return
	}

	conn, err := dbPkg.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	sqlDB, _ := conn.DB()
	defer sqlDB.Close()

	if err := reset(conn, driver); err != nil {
		fmt.Fprintf(os.Stderr, "重置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ 数据库已重置")
}

func confirm() bool {
	fmt.Print("输入 YES 继续: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "YES"
}

// reset 删除所有行并重置自增ID
func reset(conn *gorm.DB, driver string) error {
	return conn.Transaction(func(tx *gorm.DB) error {
		for _, t := range tables {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM `%s`", t)).Error; err != nil {
				return fmt.Errorf("清空 %s: %w", t, err)
			}
			fmt.Printf("已清空 %s\n", t)
		}

		switch driver {
		case "mysql":
			for _, t := range tables {
				if err := tx.Exec(fmt.Sprintf("ALTER TABLE `%s` AUTO_INCREMENT = 1", t)).Error; err != nil {
					return fmt.Errorf("重置 %s 自增ID: %w", t, err)
				}
			}
		case "sqlite":
			// 仅当表使用 AUTOINCREMENT 时 sqlite_sequence 才存在
			var n int64
			tx.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'").Scan(&n)
			if n > 0 {
				if err := tx.Exec("DELETE FROM sqlite_sequence WHERE name IN ?", tables).Error; err != nil {
					return fmt.Errorf("重置自增ID: %w", err)
				}
			}
		}
		return nil
	})
}
