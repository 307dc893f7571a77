package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/result"
	"github.com/darasahq/darasa/core/user"
)

type resultApi struct {
	svc      *result.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerResultAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := resultApi{
		svc:      deps.ResultSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	rg := g.Group("/results", jwt)
	rg.POST("", api.send, adminMiddleware())
	rg.GET("/mine", api.mine, studentMiddleware())
	rg.GET("/mine/stream", api.stream, studentMiddleware())
}

func (api *resultApi) send(ctx echo.Context) error {
	var data result.NewResult
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResult")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Send(ctx.Request().Context(), usr, data)
	if err != nil {
		if errors.Cause(err) == result.ErrStudentNotFound {
			return core.NewValidationError(nil,
				core.FieldError{Field: "student_id", Error: result.ErrStudentNotFound.Error()})
		}
		return errors.Wrap(err, "sending result")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resultApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	results, err := api.svc.ForStudent(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing results")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *resultApi) stream(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	feed, err := api.svc.WatchForStudent(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "watching results")
	}
	defer feed.Unsubscribe()

	prepareSSE(ctx)
	done := ctx.Request().Context().Done()
	for {
		select {
		case results, ok := <-feed.C:
			if !ok {
				return nil
			}
			if err := writeSSE(ctx, results); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}
