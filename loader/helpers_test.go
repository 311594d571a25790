package loader

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
)

type item struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (i *item) String() string { return i.ID }

type upperSettings struct {
	Prefix string `yaml:"prefix"`
}

// testCatalog registers test.Item with upper-casing processors for both
// pipeline kinds, a failing processor and a downgrading handler.
func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := NewCatalog()
	require.NoError(t, RegisterEntity[*item](c, "test.Item"))
	require.NoError(t, RegisterEntity[*other](c, "test.Other"))

	require.NoError(t, RegisterProcessor(c, "test.Upper", func(spec Spec) (pipeline.Processor[*item], error) {
		var s upperSettings
		if err := spec.Settings.Decode(&s); err != nil {
			return nil, err
		}
		return pipeline.NewProcessor(spec.Name, func(_ context.Context, it *item, _ *pipeline.Context, r *pipeline.Response[*item]) (*pipeline.Response[*item], error) {
			it.Name = s.Prefix + strings.ToUpper(it.Name)
			return r.OK(it), nil
		}, spec.Options...), nil
	}))

	require.NoError(t, RegisterProcessor(c, "test.UpperAll", func(spec Spec) (pipeline.Processor[[]*item], error) {
		return pipeline.NewCollectionProcessor(spec.Name, func(_ context.Context, _, matched []*item, _ *pipeline.Context, r *pipeline.Response[[]*item]) (*pipeline.Response[[]*item], error) {
			for _, it := range matched {
				it.Name = strings.ToUpper(it.Name)
			}
			return r.OK(matched), nil
		}, spec.Options...), nil
	}))

	require.NoError(t, RegisterProcessor(c, "test.Fail", func(spec Spec) (pipeline.Processor[*item], error) {
		state, err := pipeline.ParseResponseState(spec.Settings.String("state", "StopWithError"))
		if err != nil {
			return nil, err
		}
		return pipeline.NewProcessor(spec.Name, func(_ context.Context, it *item, _ *pipeline.Context, r *pipeline.Response[*item]) (*pipeline.Response[*item], error) {
			return r.SetError(state, errBoom), nil
		}, spec.Options...), nil
	}))

	require.NoError(t, RegisterHandler(c, "test.Downgrade", func(spec Spec) (pipeline.ExceptionProcessor[*item], error) {
		return pipeline.Downgrade[*item](spec.Name, spec.Condition, pipeline.ContinueWithError), nil
	}))
	return c
}

type other struct{ ID string }

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}

func newLoader(t *testing.T, yamlDocs ...string) *Loader {
	t.Helper()
	l := New(testCatalog(t), WithLogger(logger.Nop()))
	for i, doc := range yamlDocs {
		require.NoError(t, l.LoadBytes([]byte(doc), "doc"+string(rune('0'+i))))
	}
	return l
}
