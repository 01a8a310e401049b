package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// DefaultCooldown is how long a successful dispatch suppresses further ones.
const DefaultCooldown = 5 * time.Minute

const (
	lastDispatchKey = "lastDispatch"
	timestampFormat = "2006-01-02T15:04:05.000Z"
)

// ErrInFlight is returned while another dispatch is still waiting on GitHub.
var ErrInFlight = errors.New("a workflow dispatch is already in flight")

// Dispatcher starts the remote workflow.
type Dispatcher interface {
	Dispatch(ctx context.Context) error
}

// Result is the answer to a successful trigger.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Workflow   string `json:"workflow"`
	Repository string `json:"repository"`
	Branch     string `json:"branch"`
	Timestamp  string `json:"timestamp"`
	Debounced  bool   `json:"debounced,omitempty"`
}

// Trigger serialises dispatches and debounces them within a cooldown.
type Trigger struct {
	dispatcher Dispatcher
	recent     *cache.Cache
	inFlight   atomic.Bool
	now        func() time.Time
	log        *zap.Logger
}

// NewTrigger wraps dispatcher. A zero cooldown disables debouncing.
func NewTrigger(dispatcher Dispatcher, cooldown time.Duration, log *zap.Logger) *Trigger {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Trigger{
		dispatcher: dispatcher,
		now:        time.Now,
		log:        log,
	}
	if cooldown > 0 {
		t.recent = cache.New(cooldown, cooldown*2)
	}
	return t
}

// Fire dispatches the workflow unless one was dispatched within the cooldown.
// source names the caller in logs.
func (t *Trigger) Fire(ctx context.Context, source string) (*Result, error) {
	log := t.log.With(zap.String("source", source))

	if t.recent != nil {
		if last, found := t.recent.Get(lastDispatchKey); found {
			res := *last.(*Result)
			res.Debounced = true
			res.Message = "Workflow already triggered recently"
			log.Info("Dispatch debounced", zap.String("previous", res.Timestamp))
			return &res, nil
		}
	}

	if !t.inFlight.CompareAndSwap(false, true) {
		log.Info("Dispatch rejected, another one is in flight")
		return nil, ErrInFlight
	}
	defer t.inFlight.Store(false)

	if err := t.dispatcher.Dispatch(ctx); err != nil {
		log.Error("Dispatch failed", zap.Error(err))
		return nil, err
	}

	res := &Result{
		Success:    true,
		Message:    "Workflow triggered successfully",
		Workflow:   WorkflowID,
		Repository: fmt.Sprintf("%s/%s", Owner, Repo),
		Branch:     Branch,
		Timestamp:  t.now().UTC().Format(timestampFormat),
	}
	if t.recent != nil {
		t.recent.SetDefault(lastDispatchKey, res)
	}
	log.Info("Dispatch succeeded", zap.String("timestamp", res.Timestamp))
	return res, nil
}
