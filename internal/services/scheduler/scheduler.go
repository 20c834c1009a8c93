package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
	"go-feature-platform/internal/utils"
)

// idleRecheck bounds how long the loop sleeps when the plan table is empty.
const idleRecheck = 60 * time.Second

// Executor is the slice of the execution engine the scheduler needs.
type Executor interface {
	Execute(ctx context.Context, featureID uint, clientID string, kind models.ExecutionKind) (bool, string)
}

type taskPlan struct {
	task models.ScheduledTaskEntity
	expr *cronexpr.Expression
	next time.Time
}

// Scheduler keeps a plan table of live timer jobs mirroring the persisted
// scheduled tasks. One loop goroutine sleeps until the nearest deadline and
// fires due tasks through the execution engine.
type Scheduler struct {
	log      *logrus.Logger
	taskRepo repository.ScheduledTaskRepository
	executor Executor

	mu    sync.Mutex
	plans map[uint]*taskPlan
	wake  chan struct{}
}

func NewScheduler(log *logrus.Logger, taskRepo repository.ScheduledTaskRepository, executor Executor) *Scheduler {
	return &Scheduler{
		log:      log,
		taskRepo: taskRepo,
		executor: executor,
		plans:    make(map[uint]*taskPlan),
		wake:     make(chan struct{}, 1),
	}
}

// Start loads every active task into the plan table and runs the loop
// until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	tasks, err := s.taskRepo.Get(ctx, &models.GetScheduledTaskParam{IsActive: utils.ToPointer(true)})
	if err != nil {
		return fmt.Errorf("load scheduled tasks: %w", err)
	}
	for i := range tasks {
		if err := s.Add(&tasks[i]); err != nil {
			s.log.WithError(err).WithField("task_id", tasks[i].ID).Error("Skipping scheduled task with bad cron expression")
		}
	}
	s.log.WithField("count", len(s.plans)).Info("Scheduler started")

	utils.SafeGo(func() { s.loop(ctx) })
	return nil
}

// Add registers a live timer job for the task.
func (s *Scheduler) Add(task *models.ScheduledTaskEntity) error {
	expr, err := cronexpr.Parse(task.CronExpression)
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", task.CronExpression, err)
	}
	plan := &taskPlan{
		task: *task,
		expr: expr,
		next: expr.Next(time.Now()),
	}
	s.mu.Lock()
	s.plans[task.ID] = plan
	s.mu.Unlock()
	s.kick()

	s.log.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"name":     task.Name,
		"next_run": plan.next,
	}).Info("Scheduled task added")
	return nil
}

// Remove cancels and forgets the task's timer job.
func (s *Scheduler) Remove(taskID uint) {
	s.mu.Lock()
	_, existed := s.plans[taskID]
	delete(s.plans, taskID)
	s.mu.Unlock()
	if existed {
		s.kick()
		s.log.WithField("task_id", taskID).Info("Scheduled task removed")
	}
}

// Update is remove-then-add, skipping the add when the task went inactive.
func (s *Scheduler) Update(task *models.ScheduledTaskEntity) error {
	s.Remove(task.ID)
	if !task.IsActive {
		return nil
	}
	return s.Add(task)
}

// JobCount reports the size of the live plan table.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plans)
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		wait := s.fireDue(ctx)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("Scheduler stopped")
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// fireDue executes every overdue plan and returns how long to sleep until
// the nearest upcoming deadline.
func (s *Scheduler) fireDue(ctx context.Context) time.Duration {
	now := time.Now()
	var due []*taskPlan

	s.mu.Lock()
	var nearest *time.Time
	for _, plan := range s.plans {
		if !plan.next.After(now) {
			due = append(due, plan)
			plan.next = plan.expr.Next(now)
		}
		next := plan.next
		if nearest == nil || next.Before(*nearest) {
			nearest = &next
		}
	}
	s.mu.Unlock()

	for _, plan := range due {
		s.fire(ctx, plan, now)
	}

	if nearest == nil {
		return idleRecheck
	}
	wait := time.Until(*nearest)
	if wait < 0 {
		wait = 0
	}
	return wait
}

func (s *Scheduler) fire(ctx context.Context, plan *taskPlan, firedAt time.Time) {
	// The synthetic client id keeps scheduled runs out of the manual
	// live-channel routing space; no connection ever registers it, so the
	// run's events are durably recorded but never broadcast.
	clientID := fmt.Sprintf("scheduled_task_%d", plan.task.ID)
	accepted, msg := s.executor.Execute(ctx, plan.task.FeatureID, clientID, models.ExecutionKindScheduled)
	entry := s.log.WithFields(logrus.Fields{
		"task_id":    plan.task.ID,
		"feature_id": plan.task.FeatureID,
		"message":    msg,
	})
	if accepted {
		entry.Info("Scheduled task fired")
	} else {
		entry.Error("Scheduled task rejected by execution engine")
	}

	if err := s.taskRepo.UpdateRunTimes(ctx, plan.task.ID, firedAt, plan.next); err != nil {
		s.log.WithError(err).WithField("task_id", plan.task.ID).Warn("Failed to persist task run times")
	}
}
