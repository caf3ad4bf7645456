package echoweb

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/student"
)

var (
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
	errInvalidDecision = errors.New("unexpected auth decision")
	errNoSession       = errors.New("session not found in echo.Context")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler rendering our errors as HTML pages.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(v *views, logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var ep errorPage

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			ep.Code = origErr.Code
			ep.Message = fmt.Sprint(origErr.Message)
		case *core.ValidationError:
			ep.Code = http.StatusBadRequest
			ep.Fields = origErr.Fields
			if len(origErr.Fields) == 0 {
				ep.Message = sentence(origErr.Error())
			} else {
				ep.Message = "Please correct the following:"
			}
		default:
			if student.IsNotFound(origErr) {
				ep.Code = http.StatusNotFound
				ep.Message = sentence(origErr.Error())
				break
			}

			// any other error is a server error
			ep.Code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			ep.Message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if ident, ok := getIdentity(ctx); ok {
				args = append(args, ident)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) && signalShutdown != nil {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			ep.Message = err.Error()
		}
		ep.Title = http.StatusText(ep.Code)

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(ep.Code)
			} else {
				p := v.page(ctx)
				p.Error = &ep
				err = ctx.Render(ep.Code, "error", p)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
