package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type conflictErr struct{}

func (conflictErr) Error() string         { return "conflict: detail" }
func (conflictErr) HTTPStatus() int       { return http.StatusConflict }
func (conflictErr) PublicMessage() string { return "余额不足" }

func run(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Fail(c, err)
	return w
}

func TestFailUsesStatusError(t *testing.T) {
	w := run(conflictErr{})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"余额不足"}`, w.Body.String())
}

func TestFailHidesUnknownErrors(t *testing.T) {
	w := run(errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"服务器内部错误"}`, w.Body.String())
}
