package apperr

import "github.com/labstack/echo/v4"

// HTTPError converts err into an echo error carrying the mapped status and
// the user-facing message. The original error is kept as Internal for logging.
func HTTPError(err error) error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he
	}
	return echo.NewHTTPError(HTTPStatus(err), Message(err)).SetInternal(err)
}
