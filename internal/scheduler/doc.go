// Package scheduler запускает периодические задания вокруг pipeline.
//
// Задания:
//   - watchdog.go — Watchdog: перезапуск клиента после вылета и
//     продолжение незавершённых tasks
//   - daily.go    — Daily: ежедневный набор tasks из JSON-файла
//   - summary.go  — Summary: вечерняя сводка по pipeline на почту
//
// Расписания выполняет robfig/cron (scheduler.go, cron.go).
// Каждое задание можно вызвать напрямую через Tick(ctx):
//
//	wd := scheduler.NewWatchdog(scheduler.WatchdogConfig{
//	    Pipeline: orch,
//	    Probe:    adb,
//	    Logger:   logger,
//	})
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Watchdog: wd,
//	    Daily:    daily,
//	    Logger:   logger,
//	})
//	sched.Start(ctx)
//	defer sched.Stop(context.Background())
//
// Задание не запускается повторно, пока предыдущий вызов не закончился.
package scheduler
