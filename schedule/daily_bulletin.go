// Package schedule holds the bodies of the cron jobs run by cmd/scheduler.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"

	"tankcontrol/internal/handlers/business"
)

var schedulerActor = business.Actor{UserID: "scheduler", Reason: "scheduled daily bulletin"}

// OpenDailyBulletins opens the draft of the production day containing now for
// every active tank. Days that already have a report, draft or closed, are left
// alone. Returns how many drafts were created.
func OpenDailyBulletins(ctx context.Context, lifecycle *business.ReportLifecycle, now time.Time) (int, error) {
	logger.Info("> 开始创建当日日报")

	tanks, err := lifecycle.Store().ListTanks(ctx, true)
	if err != nil {
		logger.Errorf("> 查询罐体失败: %v", err)
		return 0, err
	}

	opened := 0
	for _, tank := range tanks {
		report, created, err := lifecycle.StartBulletin(ctx, schedulerActor, tank.ID, now.In(lifecycle.Location()))
		if err != nil {
			logger.WithField("tank_id", tank.ID).Errorf("> 创建日报失败: %v", err)
			continue
		}
		if created {
			opened++
		}
		logger.WithFields(logger.Fields{
			"tank_id":   tank.ID,
			"report_id": report.ID,
			"status":    report.Status,
			"created":   created,
		}).Debug("> daily bulletin checked")
	}

	logger.Infof("> 共 %d 个罐体，新建 %d 个日报", len(tanks), opened)
	return opened, nil
}

// Start registers OpenDailyBulletins on spec (standard five-field cron, evaluated
// in the production timezone) and starts the cron runner.
func Start(spec string, lifecycle *business.ReportLifecycle) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(lifecycle.Location()))

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := OpenDailyBulletins(ctx, lifecycle, time.Now()); err != nil {
			logger.Errorf("> 定时创建日报失败: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
