package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/postbus/pkg/log"
)

// FileEvent is one directory change, as published on the bus.
type FileEvent struct {
	Path string    `json:"path"`
	Op   string    `json:"op"`
	Time time.Time `json:"time"`
}

// Publisher queues messages for one loop task.
// *Node satisfies it.
type Publisher interface {
	Publish(channel string, msgs ...any) error
}

// DirWatcher publishes change events for one directory. Events that are
// already queued by fsnotify when one is read are published together, so a
// burst of changes leaves a batched channel as a single payload.
type DirWatcher struct {
	dir       string
	channel   string
	publisher Publisher
	logger    log.Logger
	maxBurst  int
}

// NewDirWatcher creates a watcher publishing to channel.
func NewDirWatcher(dir, channel string, publisher Publisher, logger log.Logger) *DirWatcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &DirWatcher{
		dir:       dir,
		channel:   channel,
		publisher: publisher,
		logger:    logger,
		maxBurst:  256,
	}
}

// Run watches until ctx is cancelled and returns ctx.Err().
func (w *DirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory", log.String("dir", w.dir), log.Channel(w.channel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			burst := w.drain(watcher.Events, []any{toFileEvent(event)})
			if err := w.publisher.Publish(w.channel, burst...); err != nil {
				w.logger.Error("publish file events", log.Count(len(burst)), log.Err(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", log.Err(err))
		}
	}
}

// drain appends the events fsnotify has already queued, up to maxBurst.
func (w *DirWatcher) drain(events <-chan fsnotify.Event, burst []any) []any {
	for len(burst) < w.maxBurst {
		select {
		case event, ok := <-events:
			if !ok {
				return burst
			}
			burst = append(burst, toFileEvent(event))
		default:
			return burst
		}
	}
	return burst
}

func toFileEvent(e fsnotify.Event) FileEvent {
	return FileEvent{Path: e.Name, Op: e.Op.String(), Time: time.Now().UTC()}
}
