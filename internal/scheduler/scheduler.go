package scheduler

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/directory"
	"telegram-crm-bot/internal/session"
)

// Start запускает фоновые задачи: ежеминутную чистку просроченных
// сессий и ночную перезагрузку справочника клиентов из выгрузки 1С.
func Start(sessions *session.Manager, dir *directory.Directory, log *zap.Logger) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if n := sessions.PurgeExpired(); n > 0 {
				log.Info("удалены просроченные сессии", zap.Int64("count", n))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// Выгрузка из 1С обновляется ночью, перечитываем после неё.
	_, err = s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(5, 0, 0))),
		gocron.NewTask(func() {
			if err := dir.Reload(); err != nil {
				log.Error("не удалось перечитать справочник клиентов", zap.Error(err))
				return
			}
			log.Info("справочник клиентов перечитан", zap.Int("clients", dir.Len()))
		}),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	return s, nil
}
