package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Live feeds are exposed as Server-Sent Events: one `data:` event per
// snapshot, the latest set of documents each time. The client closing the
// connection cancels the request context and tears the subscription down.

func prepareSSE(ctx echo.Context) {
	h := ctx.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	ctx.Response().WriteHeader(http.StatusOK)
}

func writeSSE(ctx echo.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshaling snapshot")
	}
	if _, err = fmt.Fprintf(ctx.Response(), "data: %s\n\n", data); err != nil {
		return errors.Wrap(err, "writing event")
	}
	ctx.Response().Flush()
	return nil
}
