package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/moderator/internal/adapters/mq/queue"
	"github.com/okian/moderator/internal/adapters/mq/worker"
	"github.com/okian/moderator/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var errPermanent = errors.New("permanent")

type recordingHandler struct {
	mu       sync.Mutex
	attempts map[string][]int
	failFor  map[string]int // fail the first n attempts of a task
	errFor   map[string]error
	seen     chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		attempts: make(map[string][]int),
		failFor:  make(map[string]int),
		errFor:   make(map[string]error),
		seen:     make(chan string, 100),
	}
}

func (h *recordingHandler) Handle(_ context.Context, t model.Task) error {
	h.mu.Lock()
	h.attempts[t.ID] = append(h.attempts[t.ID], t.Attempt)
	calls := len(h.attempts[t.ID])
	fail := h.failFor[t.ID]
	err := h.errFor[t.ID]
	h.mu.Unlock()

	defer func() { h.seen <- t.ID }()
	if err != nil {
		return err
	}
	if calls <= fail {
		return errors.New("flaky")
	}
	return nil
}

func (h *recordingHandler) attemptsOf(id string) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.attempts[id]...)
}

func waitFor(ch <-chan string, n int) int {
	got := 0
	timeout := time.After(3 * time.Second)
	for got < n {
		select {
		case <-ch:
			got++
		case <-timeout:
			return got
		}
	}
	return got
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker on a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		q := queue.NewInMemoryQueue(queue.WithCapacity(10), queue.WithName("test"))
		h := newRecordingHandler()
		w := worker.NewInMemoryWorker(q, h,
			worker.WithName("test-worker"),
			worker.WithMaxAttempts(3),
			worker.WithRetryDelay(time.Millisecond),
			worker.WithRetryable(func(err error) bool { return !errors.Is(err, errPermanent) }),
		)
		go w.Run(ctx)
		Reset(func() {
			cancel()
			_ = q.Close()
		})

		Convey("When a task succeeds", func() {
			So(q.Enqueue(ctx, model.Task{ID: "ok", Kind: model.TaskScore}), ShouldBeTrue)

			Convey("Then it is handled once", func() {
				So(waitFor(h.seen, 1), ShouldEqual, 1)
				So(h.attemptsOf("ok"), ShouldResemble, []int{0})
			})
		})

		Convey("When a task fails once", func() {
			h.mu.Lock()
			h.failFor["flaky"] = 1
			h.mu.Unlock()
			So(q.Enqueue(ctx, model.Task{ID: "flaky", Kind: model.TaskIngest}), ShouldBeTrue)

			Convey("Then it is retried with a bumped attempt", func() {
				So(waitFor(h.seen, 2), ShouldEqual, 2)
				So(h.attemptsOf("flaky"), ShouldResemble, []int{0, 1})
			})
		})

		Convey("When a task keeps failing", func() {
			h.mu.Lock()
			h.failFor["doomed"] = 100
			h.mu.Unlock()
			So(q.Enqueue(ctx, model.Task{ID: "doomed", Kind: model.TaskScore}), ShouldBeTrue)

			Convey("Then it stops after max attempts", func() {
				So(waitFor(h.seen, 3), ShouldEqual, 3)
				time.Sleep(20 * time.Millisecond)
				So(h.attemptsOf("doomed"), ShouldResemble, []int{0, 1, 2})
			})
		})

		Convey("When a task fails with a non-retryable error", func() {
			h.mu.Lock()
			h.errFor["bad"] = errPermanent
			h.mu.Unlock()
			So(q.Enqueue(ctx, model.Task{ID: "bad", Kind: model.TaskIngest}), ShouldBeTrue)

			Convey("Then it is not retried", func() {
				So(waitFor(h.seen, 1), ShouldEqual, 1)
				time.Sleep(20 * time.Millisecond)
				So(h.attemptsOf("bad"), ShouldResemble, []int{0})
			})
		})

		Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			Convey("Then it stops cleanly and a second shutdown is harmless", func() {
				So(err, ShouldBeNil)
				So(w.Shutdown(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool with one worker per kind", t, func() {
		ctx := context.Background()
		pool := worker.NewPool(nil)
		handlers := map[model.TaskKind]*recordingHandler{}
		queues := map[model.TaskKind]*queue.InMemoryQueue{}
		for _, kind := range []model.TaskKind{model.TaskScore, model.TaskIngest} {
			q := queue.NewInMemoryQueue(queue.WithName(string(kind)))
			h := newRecordingHandler()
			queues[kind] = q
			handlers[kind] = h
			pool.Add(worker.NewInMemoryWorker(q, h, worker.WithName(string(kind))))
		}
		pool.Start(ctx)
		Reset(func() { _ = pool.Shutdown(ctx) })

		Convey("When tasks are enqueued on each queue", func() {
			So(queues[model.TaskScore].Enqueue(ctx, model.Task{ID: "s1", Kind: model.TaskScore}), ShouldBeTrue)
			So(queues[model.TaskIngest].Enqueue(ctx, model.Task{ID: "i1", Kind: model.TaskIngest}), ShouldBeTrue)

			Convey("Then each kind's handler sees only its tasks", func() {
				So(waitFor(handlers[model.TaskScore].seen, 1), ShouldEqual, 1)
				So(waitFor(handlers[model.TaskIngest].seen, 1), ShouldEqual, 1)
				So(handlers[model.TaskScore].attemptsOf("i1"), ShouldBeEmpty)
				So(pool.Size(), ShouldEqual, 2)
			})

			Convey("Then shutdown closes the queues", func() {
				So(pool.Shutdown(ctx), ShouldBeNil)
				So(queues[model.TaskScore].IsClosed(), ShouldBeTrue)
				So(queues[model.TaskIngest].IsClosed(), ShouldBeTrue)
			})
		})
	})
}
