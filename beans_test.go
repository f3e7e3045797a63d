package beans

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Greeter struct {
	Greeting string
	Clock    *Clock
}

func NewGreeter(greeting string) *Greeter {
	return &Greeter{Greeting: greeting}
}

type Clock struct {
	_    struct{} `di:"id=clock"`
	Zone string   `di:"value=UTC"`
}

func newTypes(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, registry.Register[*Greeter](r,
		registry.WithName("Greeter"),
		registry.WithConstructor(NewGreeter, "greeting"),
	))
	require.NoError(t, registry.Register[*Clock](r, registry.WithName("Clock")))
	return r
}

const document = `
app:
  beans:
    - id: greeter
      type: Greeter
      constructorArgs:
        - {name: greeting, value: hello}
      fields:
        - {name: Clock, ref: clock}
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(document), 0o600))

	c, err := LoadFile(path, newTypes(t), WithSection("app"), WithScan((*Clock)(nil)))
	require.NoError(t, err)

	g, err := di.GetByID[*Greeter](context.Background(), c, "greeter")
	require.NoError(t, err)
	assert.Equal(t, "hello", g.Greeting)
	require.NotNil(t, g.Clock)
	assert.Equal(t, "UTC", g.Clock.Zone)
	assert.Len(t, c.Factory().Beans(), 2)
}

func TestLoad_FromConfiguration(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"beans": []any{
				map[string]any{"type": "Clock", "fields": []any{map[string]any{"name": "Zone", "value": "CET"}}},
			},
		}).
		Build()
	require.NoError(t, err)

	c, err := Load(cfg, newTypes(t))
	require.NoError(t, err)

	clock, err := di.Get[*Clock](context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "CET", clock.Zone)
}

func TestLoadBytes_Validation(t *testing.T) {
	data := []byte(`beans: [{id: greeter, type: Greeter, constructorArgs: [{name: greeting, value: hi}], fields: [{name: Clock, ref: missing}]}]`)

	_, err := LoadBytes(data, newTypes(t))
	var unknown *di.UnknownBeanIDError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.ID)

	c, err := LoadBytes(data, newTypes(t), SkipValidation())
	require.NoError(t, err)
	_, err = c.GetBeanByID(context.Background(), "greeter", nil)
	assert.ErrorAs(t, err, &unknown)
}

func TestLoad_DuplicateScannedID(t *testing.T) {
	data := []byte(`beans: [{id: clock, type: Clock}]`)
	_, err := LoadBytes(data, newTypes(t), WithScan((*Clock)(nil)))
	assert.ErrorContains(t, err, "beans: merging scanned beans")
}

func TestServe(t *testing.T) {
	c, err := LoadBytes([]byte(`beans: [{type: Clock}]`), newTypes(t))
	require.NoError(t, err)

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- Serve(ctx, c, "127.0.0.1:0") }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(shutdownTimeout + time.Second):
			t.Fatal("Serve did not return after cancel")
		}
	})

	t.Run("listen error", func(t *testing.T) {
		err := Serve(context.Background(), c, "127.0.0.1:-1")
		assert.ErrorContains(t, err, "web: failed to listen")
	})
}
