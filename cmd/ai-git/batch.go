package main

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"ai-git/internal/batch"
	"ai-git/internal/config"
	xerrors "ai-git/internal/errors"
	"ai-git/internal/observability/alerting"
	"ai-git/internal/observability/metrics"
	"ai-git/pkg/logger"
)

// BatchCmd 通过任务队列并发分析多个提交。
type BatchCmd struct {
	Workers     int           `short:"w" long:"workers" description:"number of worker goroutines (default from config)"`
	Timeout     time.Duration `long:"timeout" default:"30m" description:"give up waiting after this long"`
	MetricsAddr string        `long:"metrics-addr" description:"serve Prometheus metrics on this address while running"`
	RetryFlags

	Args struct {
		Refs []string `positional-arg-name:"ref" required:"1"`
	} `positional-args:"yes" required:"yes"`

	env *env
}

// Execute 实现 flags.Commander。
func (c *BatchCmd) Execute(_ []string) error {
	a, err := c.env.load()
	if err != nil {
		return err
	}
	model, err := a.model(c.env.opts.Model)
	if err != nil {
		return err
	}
	analyzer, err := a.analyzer(a.policy(c.RetryFlags))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.env.ctx, c.Timeout)
	defer cancel()

	store, err := newStore(ctx, a.cfg.Batch)
	if err != nil {
		return err
	}
	queue, err := newQueue(ctx, a.cfg.Batch)
	if err != nil {
		_ = store.Close()
		return err
	}
	service := batch.NewService(store, queue, a.cfg.Batch.MaxAttempts)
	defer service.Close()

	workers := c.Workers
	if workers <= 0 {
		workers = a.cfg.Batch.Workers
	}
	notifiers := []alerting.Notifier{&alerting.WriterNotifier{W: c.env.stderr}}
	if a.cfg.Batch.AlertWebhook != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: a.cfg.Batch.AlertWebhook})
	}
	processor := batch.NewProcessor(batch.NewCommitRunner(a.repo, analyzer, a.cfg.LLM.MaxFileBytes), store, queue, queue,
		batch.WithWorkerCount(workers),
		batch.WithAlertDispatcher(alerting.NewFanout(notifiers...)),
	)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- processor.Start(runCtx) }()
	defer func() {
		stop()
		<-done
	}()

	if c.MetricsAddr != "" {
		go func() {
			if err := metrics.StartServer(runCtx, c.MetricsAddr); err != nil && !stdErrors.Is(err, context.Canceled) {
				logger.L().Error("指标服务退出", slog.Any("error", err))
			}
		}()
	}

	ids := make([]string, 0, len(c.Args.Refs))
	for _, ref := range c.Args.Refs {
		job, err := service.Submit(ctx, ref, model)
		if err != nil {
			return err
		}
		ids = append(ids, job.ID)
	}

	jobs, err := service.WaitUntilCompleted(ctx, ids, 200*time.Millisecond)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeTimeout, err, "等待批量任务完成失败")
	}
	return c.print(jobs)
}

func (c *BatchCmd) print(jobs []*batch.Job) error {
	out := c.env.stdout
	failed := 0
	for _, job := range jobs {
		fmt.Fprintf(out, "== %s (%s, attempts %d)\n", job.Ref, job.Status, job.Attempts)
		if job.Status == batch.StatusSucceeded && job.Result != nil {
			d := job.Result.Diagnostics
			fmt.Fprintf(out, "%s\n[rounds %d, calls %d, waited %s]\n\n", job.Result.Text, d.Rounds, d.Attempts, d.TotalWait)
			continue
		}
		failed++
		fmt.Fprintf(out, "failed: %s\n\n", job.LastError)
	}
	if failed > 0 {
		return xerrors.New(batch.CodeJobProcessing, fmt.Sprintf("%d/%d 个任务失败", failed, len(jobs)))
	}
	return nil
}

func newStore(ctx context.Context, cfg config.BatchConfig) (batch.Store, error) {
	switch cfg.Store.Driver {
	case "mysql":
		return batch.NewMySQLStore(ctx, cfg.Store.DSN)
	default:
		return batch.NewMemoryStore(), nil
	}
}

func newQueue(ctx context.Context, cfg config.BatchConfig) (batch.Queue, error) {
	switch cfg.Queue.Driver {
	case "redis":
		return batch.NewRedisQueue(ctx, batch.RedisQueueConfig{
			Address:  cfg.Queue.Redis.Address,
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
			Key:      cfg.Queue.Redis.Key,
		})
	case "rabbitmq":
		return batch.NewRabbitMQQueue(batch.RabbitMQConfig{
			URL:     cfg.Queue.RabbitMQ.URL,
			Queue:   cfg.Queue.RabbitMQ.Queue,
			Durable: true,
		})
	default:
		return batch.NewMemoryQueue(cfg.Queue.Buffer), nil
	}
}
