package reflex

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// report handles a failure raised while a handler instance exists. The
// handler may rescue it first; the failure is then logged on the handler's
// log and the client gets an error notification. rerender selects the
// wording used for failures raised by the broadcast.
func (d *Dispatcher) report(ctx context.Context, inst *Instance, req *Request, err error, rerender bool) {
	f := NewFailure(err)

	if perr := protect(func() error { inst.RescueWith(err); return nil }); perr != nil {
		d.requestLog(req).WithError(perr).Error("reflex rescue handler panicked")
	}

	if l := inst.Logger(); l != nil {
		line := failureLine(inst.Target, req.URL, f, rerender)
		if perr := protect(func() error { l.Error(line); return nil }); perr != nil {
			d.requestLog(req).WithError(perr).Error("reflex logger panicked")
		}
	}

	body := errorBody(f, d.cfg.Development)
	if perr := protect(func() error { inst.OnError(ctx, req.Data, body); return nil }); perr != nil {
		d.requestLog(req).WithError(perr).Error("reflex error notification failed")
	}
}

// reportUnresolved handles a failure raised before a handler instance
// existed. req is nil when the message could not be decoded.
func (d *Dispatcher) reportUnresolved(ctx context.Context, conn Conn, req *Request, err error) {
	kind := KindOf(err)

	var verr *VersionMismatchError
	if kind == KindVersionMismatch && errors.As(err, &verr) {
		d.reportMismatch(ctx, conn, req, verr)
	} else {
		target, url := "", ""
		if req != nil {
			target, url = req.Target, req.URL
		}
		d.requestLog(req).
			WithField("kind", kind.String()).
			Error(failureLine(target, url, NewFailure(err), false))
	}

	if kind == KindRouteNotFound {
		d.routeHint.Do(func() {
			d.log.Warn(RouteHint(d.cfg.ConfigPath))
		})
	}
}

// reportMismatch applies the sanity-check policy to a version mismatch.
func (d *Dispatcher) reportMismatch(ctx context.Context, conn Conn, req *Request, verr *VersionMismatchError) {
	text := MismatchMessage(verr.Server, verr.Client)

	if d.cfg.OnFailedSanityChecks != SanityIgnore {
		d.requestLog(req).Error(text)
	}

	if d.cfg.Development && conn != nil {
		n := Notification{Subject: SubjectConsoleLog, Body: text, Level: "error"}
		if req != nil {
			n.ReflexID = req.ID
		}
		if perr := protect(func() error { return conn.Notify(ctx, n) }); perr != nil {
			d.requestLog(req).WithError(perr).Warn("reflex console log broadcast failed")
		}
	}

	if d.cfg.OnFailedSanityChecks == SanityExit {
		d.sleep(exitPause)
		d.cfg.Exit(1)
	}
}

func (d *Dispatcher) requestLog(req *Request) logrus.FieldLogger {
	if req == nil {
		return d.log
	}
	return d.log.WithFields(logrus.Fields{
		"reflex_id": req.ID,
		"target":    req.Target,
	})
}
