package reflex

import (
	"fmt"
	"strings"
)

const mismatchTemplate = `Reflex failed due to a reflex server/client version mismatch. Package versions must match exactly.
Note that if you are using pre-release builds, the server writes versions as "x.y.z.preN", while client packages use "x.y.z-preN".

reflex server: %s
reflex client: %s`

// MismatchMessage describes a failed version check to the operator.
func MismatchMessage(server, client string) string {
	if client == "" {
		client = "(not reported)"
	}
	return fmt.Sprintf(mismatchTemplate, server, client)
}

const routeHintTemplate = `NOTE: reflex failed to locate a matching route and could not resolve the page controller.

If your app uses middleware to rewrite part of the request path, you must register that middleware with reflex as well.
The reflex configuration should be located at %s, or you can generate it with:

  $ reflexd config init --config %s

Register any required middleware on the route table:

  routes := reflex.NewRouteTable(sessions)
  routes.Use(FirstMiddleware)
  routes.Use(SecondMiddleware)`

// RouteHint explains to the operator how to fix a request URL that could
// not be routed.
func RouteHint(configPath string) string {
	return fmt.Sprintf(routeHintTemplate, configPath, configPath)
}

// BasicAuthWarning explains a controller action that answered 401.
func BasicAuthWarning(c *Controller) string {
	return fmt.Sprintf(
		"Reflex failed to process controller action %q due to HTTP basic auth. "+
			"Consider skipping authentication when reflex.IsReflex(r) reports true in the middleware responsible for it.",
		c.Name+"#"+c.Action,
	)
}

// failureLine is the error log line for a failed dispatch: the message and
// short location, the page URL, then the stack.
func failureLine(target, url string, f Failure, rerender bool) string {
	msg := f.Message
	if f.ShortLocation != "" {
		msg += " " + f.ShortLocation
	}

	var b strings.Builder
	if rerender {
		fmt.Fprintf(&b, "Reflex failed to re-render: %s [%s]", msg, url)
	} else {
		fmt.Fprintf(&b, "Reflex %s failed: %s [%s]", target, msg, url)
	}
	if f.Stack != "" {
		b.WriteString("\n")
		b.WriteString(f.Stack)
	}
	return b.String()
}

// errorBody is the diagnostic sent to the client with an error
// notification. Development builds add the failure location.
func errorBody(f Failure, development bool) string {
	if development && f.ShortLocation != "" {
		return f.Message + " " + f.ShortLocation
	}
	return f.Message
}
