package actor

import (
	"runtime"

	"k8s.io/klog/v2"

	"github.com/born-ml/mnn/internal/engine"
	"github.com/born-ml/mnn/internal/schedule"
)

// worker owns the engine and session. Only the worker goroutine touches it.
type worker struct {
	engine  *engine.Engine
	session *engine.Session
	paths   []schedule.ScheduleConfig
	log     klog.Logger
}

func (w *worker) loop(queue <-chan request, done chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)
	defer w.shutdown()

	if err := w.load(); err != nil {
		w.log.Error(err, "creating session; retrying on next submission")
	}
	for req := range queue {
		if req.stop {
			return
		}
		req.run(w)
	}
}

func (w *worker) load() error {
	if w.session != nil {
		return nil
	}
	s, err := w.engine.CreateMultiPathSession(w.paths)
	if err != nil {
		return err
	}
	w.session = s
	w.log.V(2).Info("loaded session", "session", s.Handle())
	return nil
}

func (w *worker) unload() {
	if w.session == nil {
		return
	}
	w.session.Close()
	w.session = nil
	w.log.V(2).Info("unloaded session")
}

// shutdown releases the session, then the engine.
func (w *worker) shutdown() {
	w.unload()
	w.engine.Close()
	w.log.V(2).Info("actor stopped")
}
