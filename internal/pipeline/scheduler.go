package pipeline

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduler fires a job every interval. A tick that arrives while the
// previous run is still in progress is skipped, so cycles never overlap.
type scheduler struct {
	cron *cron.Cron
	job  cron.Job
}

func newScheduler(interval time.Duration, fn func(), logger *slog.Logger) *scheduler {
	l := cronLogger{logger: logger}
	job := cron.NewChain(cron.Recover(l), cron.SkipIfStillRunning(l)).Then(cron.FuncJob(fn))

	c := cron.New(cron.WithLogger(l))
	c.Schedule(cron.Every(interval), job)
	return &scheduler{cron: c, job: job}
}

// start runs the job once and then hands it to the cron loop.
func (s *scheduler) start() {
	s.job.Run()
	s.cron.Start()
}

// stop waits for a running job to finish.
func (s *scheduler) stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts slog to cron.Logger. Cron's info chatter goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
