package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRequestIDAndEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(zerolog.Nop()))
	r.GET("/ok", func(c *gin.Context) {
		Success(c, http.StatusOK, gin.H{"hello": "world"})
	})
	r.GET("/busy", func(c *gin.Context) {
		FailWithDetail(c, http.StatusConflict, ErrRegradeInProgress, "quiz 3")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") != "req-123" {
		t.Errorf("X-Request-ID = %q", w.Header().Get("X-Request-ID"))
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Metadata.RequestID != "req-123" || body.Error != nil {
		t.Errorf("body = %+v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/busy", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	body = Response{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != ErrRegradeInProgress || body.Error.Detail != "quiz 3" {
		t.Errorf("error body = %+v", body.Error)
	}
	if body.Metadata.RequestID == "" {
		t.Error("expected generated request id")
	}
}

func TestGetMessageCoversCodes(t *testing.T) {
	codes := []ErrCode{
		ErrTokenRequired, ErrTokenInvalid, ErrPermissionDenied, ErrTeacherOnly,
		ErrValidation, ErrInvalidID, ErrInvalidPayload, ErrInvalidScope,
		ErrQuizNotFound, ErrRunNotFound, ErrRegradeInProgress, ErrInvalidBandConfig,
		ErrGradeSyncFailed, ErrRegradeSourceFailed, ErrRateLimitExceeded, ErrInternal,
	}
	unknown := GetMessage("NOPE")
	for _, c := range codes {
		if GetMessage(c) == unknown {
			t.Errorf("code %s has no message", c)
		}
	}
}
