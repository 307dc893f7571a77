package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/announcement"
	"github.com/darasahq/darasa/core/user"
)

type announcementApi struct {
	svc      *announcement.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerAnnouncementAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := announcementApi{
		svc:      deps.AnnSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/announcements", jwt)
	ag.GET("", api.query)
	ag.GET("/stream", api.stream)
	ag.POST("", api.create, adminMiddleware())
	ag.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *announcementApi) create(ctx echo.Context) error {
	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ann, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, ann)
}

func (api *announcementApi) query(ctx echo.Context) error {
	anns, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing announcements")
	}
	return ctx.JSON(http.StatusOK, anns)
}

func (api *announcementApi) stream(ctx echo.Context) error {
	feed, err := api.svc.Watch(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "watching announcements")
	}
	defer feed.Unsubscribe()

	prepareSSE(ctx)
	done := ctx.Request().Context().Done()
	for {
		select {
		case anns, ok := <-feed.C:
			if !ok {
				return nil
			}
			if err := writeSSE(ctx, anns); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		if errors.Cause(err) == announcement.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}
