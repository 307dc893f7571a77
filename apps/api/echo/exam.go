package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/exam"
	"github.com/darasahq/darasa/core/user"
)

type examApi struct {
	svc      *exam.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := examApi{
		svc:      deps.ExamSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	tg := g.Group("/tests", jwt)
	tg.GET("", api.query)
	tg.GET("/stream", api.stream)
	tg.POST("", api.create, staffMiddleware())
	tg.GET("/:id", api.retrieve)
	tg.DELETE("/:id", api.destroy, staffMiddleware())

	tg.POST("/:id/attempts", api.submit, studentMiddleware())
	tg.GET("/:id/attempts", api.queryAttempts, staffMiddleware())
	tg.GET("/:id/attempts/mine", api.myAttempt, studentMiddleware())
}

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	t, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}
	return ctx.JSON(http.StatusCreated, t)
}

// query lists the tests the caller may see; students get the answer key
// stripped.
func (api *examApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	tests, err := api.svc.ListFor(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing tests")
	}
	if usr.IsStudent() {
		return ctx.JSON(http.StatusOK, studentViews(tests))
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *examApi) stream(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	feed, err := api.svc.WatchFor(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "watching tests")
	}
	defer feed.Unsubscribe()

	prepareSSE(ctx)
	done := ctx.Request().Context().Done()
	for {
		select {
		case tests, ok := <-feed.C:
			if !ok {
				return nil
			}
			var payload interface{} = tests
			if usr.IsStudent() {
				payload = studentViews(tests)
			}
			if err := writeSSE(ctx, payload); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}

func (api *examApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	t, err := api.svc.GetVisible(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == exam.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "fetching test")
	}
	if usr.IsStudent() {
		return ctx.JSON(http.StatusOK, t.StudentView())
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *examApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		if errors.Cause(err) == exam.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting test")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) submit(ctx echo.Context) error {
	var data SubmitAttemptRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAttemptRequest")
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	attempt, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("id"), data.Answers)
	if err != nil {
		switch errors.Cause(err) {
		case exam.ErrNotFound:
			return errHttpNotFound
		case exam.ErrAlreadyAttempted:
			return errHttpConflict
		}
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusCreated, attempt)
}

func (api *examApi) queryAttempts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reports, err := api.svc.AttemptsForTest(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == exam.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "listing attempts")
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api *examApi) myAttempt(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	attempt, err := api.svc.MyAttempt(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == exam.ErrAttemptNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "fetching attempt")
	}
	return ctx.JSON(http.StatusOK, attempt)
}

func studentViews(tests []exam.Test) []exam.StudentTest {
	views := make([]exam.StudentTest, 0, len(tests))
	for _, t := range tests {
		views = append(views, t.StudentView())
	}
	return views
}

type SubmitAttemptRequest struct {
	Answers exam.AnswerSheet `json:"answers"`
}
