// Package scheduler запускает конвейеры по расписаниям демона.
//
// Расписания читаются из YAML-конфигурации (LoadSchedules). Для каждого
// вычисляется NextDueAt по cron-выражению или интервалу. Tick отправляет
// запуски, время которых наступило, через Submitter с ключом
// идемпотентности "{schedule_name}_{due_unix}".
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedules: schedules,
//	    Submitter: submitter,
//	    Logger:    logger,
//	})
//	go sched.Run(ctx)
package scheduler
