package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPStatus returns the response status for err. Rich errors answer with
// their code, anything else is a 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

// errorBody renders err as {"error": {...}}. Internal failures are reduced
// to a generic message so driver errors never reach the client.
func errorBody(err error) goerrors.ErrorResponse {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || HTTPStatus(err) >= http.StatusInternalServerError {
		richErr = goerrors.New("an unexpected error occurred", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal).
			WithTextCode("INTERNAL_ERROR")
		return richErr.ToErrorResponse(false, nil)
	}

	out := richErr.Clone()
	out.Source = nil
	return out.ToErrorResponse(false, nil)
}

// ErrorHandler writes err as a JSON error response.
func ErrorHandler(ctx router.Context, err error) error {
	return ctx.JSON(HTTPStatus(err), errorBody(err))
}
