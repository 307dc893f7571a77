package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/darasahq/darasa/core/school"
)

// The class and subject catalogs are fixed; these endpoints feed signup and
// authoring pickers, so they stay un-authed.
func registerSchoolAPI(g *echo.Group) {
	sg := g.Group("/school")
	sg.GET("/classes", queryClasses)
	sg.GET("/subjects", querySubjects)
}

func queryClasses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, school.Classes)
}

func querySubjects(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, school.Subjects)
}
