package reflex

import (
	"context"
	"net/http"
)

// finalize runs after every dispatch that produced a handler instance,
// whatever the outcome. Each step is isolated from the others: a failing
// step is logged and the next one still runs.
func (d *Dispatcher) finalize(ctx context.Context, inst *Instance) {
	ctrl := inst.Controller()
	if ctrl != nil {
		d.commitSession(ctx, inst, ctrl)
		d.reportFailedBasicAuth(ctrl)
	}

	if l := inst.Logger(); l != nil {
		if err := protect(func() error { l.LogAllOperations(); return nil }); err != nil {
			d.log.WithError(err).Error("reflex operation log flush failed")
		}
	}
}

func (d *Dispatcher) commitSession(ctx context.Context, inst *Instance, ctrl *Controller) {
	err := protect(func() error {
		if ctrl.Session == nil {
			return nil
		}
		return withStack(ctrl.Session.Commit(ctx, ctrl.Request, ctrl.Response))
	})
	if err == nil {
		return
	}

	f := NewFailure(err)
	line := "Failed to commit session! " + f.Message
	if f.Stack != "" {
		line += "\n" + f.Stack
	}
	if l := inst.Logger(); l != nil {
		_ = protect(func() error { l.Error(line); return nil })
	}
}

func (d *Dispatcher) reportFailedBasicAuth(ctrl *Controller) {
	if ctrl.Response == nil || ctrl.Response.Status != http.StatusUnauthorized {
		return
	}
	d.log.Warn(BasicAuthWarning(ctrl))
}
