package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"pdfchat-backend/internal/shared/server/middleware"
)

// streamRecorder adds CloseNotify, which gin's Stream requires.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func newTestRouter(t *testing.T, f *fixture) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Auth("dev"))
	NewHandler(f.svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func postMessage(router *gin.Engine, body, guest string) *streamRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if guest != "" {
		req.Header.Set("X-Guest-Id", guest)
	}
	resp := newStreamRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestSendMessageRequiresIdentity(t *testing.T) {
	router := newTestRouter(t, newFixture(t))
	resp := postMessage(router, `{"documentId":"doc-1","questionText":"refunds?"}`, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestSendMessageStreamsPlainText(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f)

	resp := postMessage(router, `{"documentId":"doc-1","questionText":"refunds?"}`, "g1")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header().Get("Content-Type"))
	require.Equal(t, "The answer.", resp.Body.String())

	hist, err := f.store.RecentHistory(context.Background(), "doc-1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
}

func TestSendMessageErrorsBeforeFirstFragment(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		guest  string
		setup  func(f *fixture)
		status int
		code   string
	}{
		{name: "malformed body", body: `{"documentId":`, guest: "g1", status: http.StatusBadRequest, code: "validation_error"},
		{name: "missing question", body: `{"documentId":"doc-1"}`, guest: "g1", status: http.StatusBadRequest, code: "validation_error"},
		{name: "foreign document", body: `{"documentId":"doc-1","questionText":"q"}`, guest: "intruder", status: http.StatusNotFound, code: "not_found"},
		{
			name:  "model unavailable",
			body:  `{"documentId":"doc-1","questionText":"q"}`,
			guest: "g1",
			setup: func(f *fixture) {
				f.model.Err = errors.New("503 from model")
				f.model.FailAfter = 0
			},
			status: http.StatusBadGateway,
			code:   "upstream_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			resp := postMessage(newTestRouter(t, f), tt.body, tt.guest)
			require.Equal(t, tt.status, resp.Code, resp.Body.String())

			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
			require.Equal(t, tt.code, payload.Error.Code)
		})
	}
}

func TestSendMessageTruncatesAfterFirstFragment(t *testing.T) {
	f := newFixture(t)
	f.model.Err = errors.New("connection reset")
	f.model.FailAfter = 1

	resp := postMessage(newTestRouter(t, f), `{"documentId":"doc-1","questionText":"q"}`, "g1")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "The ", resp.Body.String())

	hist, err := f.store.RecentHistory(context.Background(), "doc-1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

// answererFunc adapts a function to the Answerer interface.
type answererFunc func(ctx context.Context, turn Turn, emit func(string) error) error

func (f answererFunc) Answer(ctx context.Context, turn Turn, emit func(string) error) error {
	return f(ctx, turn, emit)
}

func serveWithContext(t *testing.T, svc Answerer, ctx context.Context) <-chan *streamRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Auth("dev"))
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages",
		strings.NewReader(`{"documentId":"doc-1","questionText":"q"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "g1")

	finished := make(chan *streamRecorder, 1)
	go func() {
		resp := newStreamRecorder()
		router.ServeHTTP(resp, req)
		finished <- resp
	}()
	return finished
}

func TestSendMessageReturnsWhenClientLeavesBeforeFirstFragment(t *testing.T) {
	waiting := answererFunc(func(ctx context.Context, turn Turn, emit func(string) error) error {
		<-ctx.Done()
		return ctx.Err()
	})

	for i := 0; i < 40; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		finished := serveWithContext(t, waiting, ctx)
		cancel()

		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Fatalf("handler did not return after disconnect (iteration %d)", i)
		}
	}
}

func TestSendMessageReturnsWhenClientLeavesMidStream(t *testing.T) {
	for i := 0; i < 40; i++ {
		emitted := make(chan struct{})
		streaming := answererFunc(func(ctx context.Context, turn Turn, emit func(string) error) error {
			if err := emit("partial "); err != nil {
				return err
			}
			close(emitted)
			<-ctx.Done()
			return ctx.Err()
		})

		ctx, cancel := context.WithCancel(context.Background())
		finished := serveWithContext(t, streaming, ctx)

		select {
		case <-emitted:
		case <-time.After(2 * time.Second):
			t.Fatalf("first fragment was never delivered (iteration %d)", i)
		}
		cancel()

		select {
		case resp := <-finished:
			require.Equal(t, http.StatusOK, resp.Code)
			require.Equal(t, "partial ", resp.Body.String())
		case <-time.After(2 * time.Second):
			t.Fatalf("handler did not return after disconnect (iteration %d)", i)
		}
	}
}
