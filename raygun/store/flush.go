package store

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sthembisoo/raygun4go/raygun/messages"
)

// Sender delivers one entry.
type Sender interface {
	Send(ctx context.Context, msg *messages.Message) error
}

// FlushResult counts what happened to the queued entries.
type FlushResult struct {
	Sent    int
	Failed  int
	Dropped int
}

// Flush sends every queued entry. Delivered entries are removed; failed ones
// stay queued until they have been attempted the configured number of
// times. Only store failures are returned as errors.
func (s *Store) Flush(ctx context.Context, sender Sender) (FlushResult, error) {
	ids, err := s.IDs()
	if err != nil {
		return FlushResult{}, err
	}

	var sent, failed, dropped atomic.Int64
	var eg errgroup.Group
	eg.SetLimit(max(s.concurrency, 1))
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			e, err := s.Load(id)
			if err != nil {
				return err
			}
			log := s.log.WithFields(logrus.Fields{"entry": id, "attempts": e.Attempts})

			sendErr := sender.Send(ctx, e.Message)
			if sendErr == nil {
				sent.Add(1)
				return s.Delete(id)
			}
			if ctx.Err() != nil {
				// Interrupted, not the entry's fault.
				failed.Add(1)
				return nil
			}
			log.Debugf("Failed to send queued entry: %v", sendErr)

			attempts, err := s.recordAttempt(e)
			if err != nil {
				return err
			}
			if s.maxAttempts > 0 && attempts >= s.maxAttempts {
				log.Warnf("Dropping queued entry after %d attempts", attempts)
				dropped.Add(1)
				return s.Delete(id)
			}
			failed.Add(1)
			return nil
		})
	}

	err = eg.Wait()
	return FlushResult{
		Sent:    int(sent.Load()),
		Failed:  int(failed.Load()),
		Dropped: int(dropped.Load()),
	}, err
}
