package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"tankcontrol/internal/bootstrap"
	"tankcontrol/pkg/config"
	"tankcontrol/schedule"
)

func main() {
	settings := config.LoadSettings()
	settings.ConfigureLogging(&logger.JSONFormatter{})
	logger.Info("> 开始初始化程序...")

	lifecycle, cleanup := bootstrap.Lifecycle(settings)
	defer cleanup()

	// 启动时先补开当天日报
	if _, err := schedule.OpenDailyBulletins(context.Background(), lifecycle, time.Now()); err != nil {
		logger.Errorf("> 启动补开日报失败: %v", err)
	}

	c, err := schedule.Start(settings.SchedulerCron, lifecycle)
	if err != nil {
		logger.Fatalf("> 添加定时任务失败: %v", err)
	}
	logger.Infof("> 定时任务已启动: %s (%s)", settings.SchedulerCron, lifecycle.Location())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	<-c.Stop().Done()
	logger.Info("> 定时任务已停止")
}
