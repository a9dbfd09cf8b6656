package storage

import (
	"context"
	"encoding/json"

	"taskflow-api/domain"
)

// EnqueueDigest posts one digest request to the fan-out queue. Requests are
// not deduplicated: enqueueing the same owner twice sends two emails.
func (s *Storage) EnqueueDigest(ctx context.Context, req domain.DigestRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = s.digestQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// DequeuedDigest is a digest request pulled off the queue together with the
// receipt needed to delete it once handled.
type DequeuedDigest struct {
	Request    domain.DigestRequest
	messageID  string
	popReceipt string
}

// DequeueDigest pulls at most one digest request from the queue. It returns
// (nil, nil) when the queue is empty. Malformed messages are deleted and
// skipped so a bad payload cannot wedge the worker.
func (s *Storage) DequeueDigest(ctx context.Context) (*DequeuedDigest, error) {
	resp, err := s.digestQueue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	d := &DequeuedDigest{messageID: *msg.MessageID, popReceipt: *msg.PopReceipt}
	if err := json.Unmarshal([]byte(*msg.MessageText), &d.Request); err != nil {
		_, _ = s.digestQueue.DeleteMessage(ctx, d.messageID, d.popReceipt, nil)
		return nil, nil
	}
	return d, nil
}

// AckDigest deletes a handled digest request from the queue.
func (s *Storage) AckDigest(ctx context.Context, d *DequeuedDigest) error {
	_, err := s.digestQueue.DeleteMessage(ctx, d.messageID, d.popReceipt, nil)
	return err
}
