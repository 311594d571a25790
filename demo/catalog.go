package demo

import (
	"fmt"
	"time"

	"github.com/kbukum/entitypipe/loader"
	"github.com/kbukum/entitypipe/pipeline"
)

// Names used in definition files.
const (
	EntityType          = "demo.Entity"
	TypeStateFilter     = "demo.EntityStateFilter"
	TypeNameProcessor   = "demo.EntityNameProcessor"
	TypeDateChecker     = "demo.EntityDateChecker"
	TypeExceptionLogger = "demo.ExceptionLogger"
)

// Setting keys.
const (
	SettingNamePrefix = "name_prefix"
	SettingCutOffDate = "cut_off_date"
	SettingState      = "state"
)

// RegisterCatalog registers the demo entity, its processors and the
// exception logger for both basic and collection pipelines.
func RegisterCatalog(c *loader.Catalog) error {
	steps := []func() error{
		func() error { return loader.RegisterEntity[*Entity](c, EntityType) },

		func() error {
			return loader.RegisterProcessor(c, TypeStateFilter, func(spec loader.Spec) (pipeline.Processor[*Entity], error) {
				return NewStateFilter(spec.Name, spec.Options...), nil
			})
		},
		func() error {
			return loader.RegisterProcessor(c, TypeStateFilter, func(spec loader.Spec) (pipeline.Processor[[]*Entity], error) {
				return NewCollectionStateFilter(spec.Name, spec.Options...), nil
			})
		},

		func() error {
			return loader.RegisterProcessor(c, TypeNameProcessor, func(spec loader.Spec) (pipeline.Processor[*Entity], error) {
				p, err := NewNameProcessor(spec.Name, spec.Settings.String(SettingNamePrefix, ""), spec.Log, spec.Options...)
				if err != nil {
					return nil, err
				}
				return p, nil
			})
		},
		func() error {
			return loader.RegisterProcessor(c, TypeNameProcessor, func(spec loader.Spec) (pipeline.Processor[[]*Entity], error) {
				p, err := NewCollectionNameProcessor(spec.Name, spec.Settings.String(SettingNamePrefix, ""), spec.Log, spec.Options...)
				if err != nil {
					return nil, err
				}
				return p, nil
			})
		},

		func() error {
			return loader.RegisterProcessor(c, TypeDateChecker, func(spec loader.Spec) (pipeline.Processor[*Entity], error) {
				cutOff, err := cutOffDate(spec)
				if err != nil {
					return nil, err
				}
				return NewDateChecker(spec.Name, cutOff, spec.Options...), nil
			})
		},
		func() error {
			return loader.RegisterProcessor(c, TypeDateChecker, func(spec loader.Spec) (pipeline.Processor[[]*Entity], error) {
				cutOff, err := cutOffDate(spec)
				if err != nil {
					return nil, err
				}
				return NewCollectionDateChecker(spec.Name, cutOff, spec.Options...), nil
			})
		},

		func() error {
			return loader.RegisterHandler(c, TypeExceptionLogger, exceptionLogger[*Entity])
		},
		func() error {
			return loader.RegisterHandler(c, TypeExceptionLogger, exceptionLogger[[]*Entity])
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func cutOffDate(spec loader.Spec) (time.Time, error) {
	t, ok, err := spec.Settings.Time(SettingCutOffDate)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, fmt.Errorf("setting %q is required", SettingCutOffDate)
	}
	return t, nil
}

func exceptionLogger[T any](spec loader.Spec) (pipeline.ExceptionProcessor[T], error) {
	state, err := pipeline.ParseResponseState(spec.Settings.String(SettingState, pipeline.ContinueWithError.String()))
	if err != nil {
		return nil, err
	}
	return NewExceptionLogger[T](spec.Name, spec.Condition, state, spec.Log), nil
}
