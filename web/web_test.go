package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestState struct {
	ID int32
}

type stateController struct {
	container *di.Container
}

func (c *stateController) MountRoutes(router gin.IRouter) {
	router.GET("/state", func(ctx *gin.Context) {
		a, err := di.GetByID[*requestState](ctx.Request.Context(), c.container, "state")
		if err != nil {
			ctx.String(http.StatusInternalServerError, err.Error())
			return
		}
		b, _ := di.GetByID[*requestState](ctx.Request.Context(), c.container, "state")
		ctx.String(http.StatusOK, fmt.Sprintf("%d:%t", a.ID, a == b))
	})
}

type pingController struct{}

func (pingController) MountRoutes(router gin.IRouter) {
	router.GET("/ping", func(ctx *gin.Context) { ctx.String(http.StatusOK, "pong") })
}

func newFactory(t *testing.T) *di.BeanFactory {
	t.Helper()
	var seq atomic.Int32
	r := registry.New()
	require.NoError(t, registry.Register[*requestState](r, registry.WithConstructor(func() *requestState {
		return &requestState{ID: seq.Add(1)}
	})))
	require.NoError(t, registry.Register[pingController](r))

	set := di.NewRegistrationSet()
	require.NoError(t, set.Add("state", &di.BeanDescription{Lifecycle: di.Thread, Type: di.TypeOf[*requestState]()}))
	require.NoError(t, set.Add("ping", &di.BeanDescription{Type: di.TypeOf[pingController]()}))
	require.NoError(t, set.AddAnonymous(&di.BeanDescription{Type: di.TypeOf[*requestState](), Lifecycle: di.Prototype}))

	f, err := di.NewBeanFactory(set, r)
	require.NoError(t, err)
	return f
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func TestBeansController(t *testing.T) {
	f := newFactory(t)
	host := NewBuilder(WithControllers(NewBeansController(f))).Build(di.NewContainer(f))

	w := get(t, host.Handler(), "/beans")
	require.Equal(t, http.StatusOK, w.Code)

	var infos []di.BeanInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 3)
	assert.Equal(t, "ping", infos[0].ID)
	assert.Equal(t, "state", infos[1].ID)
	assert.Equal(t, "thread", infos[1].Lifecycle)
	assert.True(t, infos[2].Anonymous)

	w = get(t, host.Handler(), "/beans/ping")
	require.Equal(t, http.StatusOK, w.Code)
	var info di.BeanInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "singleton", info.Lifecycle)
	assert.False(t, info.Built)

	w = get(t, host.Handler(), "/beans/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "nope")
}

func TestThreadScopePerRequest(t *testing.T) {
	f := newFactory(t)
	c := di.NewContainer(f)
	host := NewBuilder(WithControllers(&stateController{container: c})).Build(c)

	first := get(t, host.Handler(), "/state")
	second := get(t, host.Handler(), "/state")

	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "1:true", first.Body.String())
	assert.Equal(t, "2:true", second.Body.String())
}

func TestHost_ControllerBeans(t *testing.T) {
	f := newFactory(t)
	host := NewBuilder(WithAddr("127.0.0.1:0")).
		AddControllerBeans("ping").
		Build(di.NewContainer(f))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- host.Start(ctx) }()

	select {
	case <-host.Ready():
	case err := <-errCh:
		t.Fatalf("host failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("host did not start")
	}

	resp, err := http.Get("http://" + host.Address() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, host.Stop(stopCtx))
	assert.NoError(t, <-errCh)

	info, ok := f.Bean("ping")
	require.True(t, ok)
	assert.True(t, info.Built)
}

func TestHost_ControllerBeanErrors(t *testing.T) {
	f := newFactory(t)

	host := NewBuilder(WithAddr("127.0.0.1:0")).AddControllerBeans("missing").Build(di.NewContainer(f))
	err := host.Start(context.Background())
	var unknown *di.UnknownBeanIDError
	assert.ErrorAs(t, err, &unknown)

	host = NewBuilder(WithAddr("127.0.0.1:0")).AddControllerBeans("state").Build(di.NewContainer(f))
	err = host.Start(context.Background())
	assert.ErrorContains(t, err, "does not implement web.Controller")
}
