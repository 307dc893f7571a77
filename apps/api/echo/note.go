package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/note"
	"github.com/darasahq/darasa/core/user"
)

type noteApi struct {
	svc      *note.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerNoteAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := noteApi{
		svc:      deps.NoteSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	ng := g.Group("/notes", jwt)
	ng.GET("", api.query)
	ng.GET("/stream", api.stream)
	ng.POST("", api.create, staffMiddleware())
	ng.DELETE("/:id", api.destroy, staffMiddleware())
}

func (api *noteApi) create(ctx echo.Context) error {
	var data note.NewNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	n, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating note")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *noteApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	notes, err := api.svc.ListFor(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing notes")
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *noteApi) stream(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	feed, err := api.svc.WatchFor(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "watching notes")
	}
	defer feed.Unsubscribe()

	prepareSSE(ctx)
	done := ctx.Request().Context().Done()
	for {
		select {
		case notes, ok := <-feed.C:
			if !ok {
				return nil
			}
			if err := writeSSE(ctx, notes); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}

func (api *noteApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		if errors.Cause(err) == note.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}
