package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow-api/digest"
	"taskflow-api/domain"
	"taskflow-api/mailer"
)

const digestChannel = "digests"

type taskLister interface {
	ListTasks(ctx context.Context, ownerID string, f domain.TaskFilter, now time.Time) ([]domain.Task, error)
}

type processor struct {
	store taskLister
	mail  mailer.Mailer
	redis *redis.Client
	from  string
}

type digestNotice struct {
	OwnerID  string `json:"ownerId"`
	EmailID  string `json:"emailId"`
	Overdue  int    `json:"overdue"`
	DueToday int    `json:"dueToday"`
}

// Process builds and delivers one owner's digest. Delivery errors propagate
// so the caller can leave the queue message for redelivery.
func (p *processor) Process(ctx context.Context, req domain.DigestRequest, now time.Time) error {
	open := domain.StatusOpen
	tasks, err := p.store.ListTasks(ctx, req.OwnerID, domain.TaskFilter{
		Status:    &open,
		Sort:      domain.SortDueAt,
		Direction: domain.SortAsc,
	}, now)
	if err != nil {
		return err
	}

	overdue, dueToday := digest.Partition(tasks, now)
	email, err := digest.Build(now, overdue, dueToday)
	if err != nil {
		return err
	}
	emailID, err := p.mail.Send(ctx, p.from, req.Email, email.Subject, email.HTML)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"owner":     req.OwnerID,
		"email_id":  emailID,
		"overdue":   len(overdue),
		"due_today": len(dueToday),
	}).Info("digest sent")

	if p.redis != nil {
		notice, _ := json.Marshal(digestNotice{
			OwnerID:  req.OwnerID,
			EmailID:  emailID,
			Overdue:  len(overdue),
			DueToday: len(dueToday),
		})
		if err := p.redis.Publish(ctx, digestChannel, notice).Err(); err != nil {
			log.Errorf("unable to publish digest notice for %s", req.OwnerID)
		}
	}
	return nil
}
