package loader

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/entitypipe/condition"
	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/validation"
)

// Option configures a Loader.
type Option func(*Loader)

// WithGates sets the condition registry handed to every pipeline and
// processor the loader builds.
func WithGates(r *condition.Registry) Option {
	return func(l *Loader) { l.gates = r }
}

// WithLogger sets the loader logger. Built pipelines log through it too.
func WithLogger(log *logger.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithStrict rejects unknown keys in definition files.
func WithStrict(strict bool) Option {
	return func(l *Loader) { l.strict = strict }
}

// WithInstrumentation wraps every child the loader adds with the selected
// decorators.
func WithInstrumentation(inst Instrumentation) Option {
	return func(l *Loader) { l.inst = inst }
}

// Loader collects pipeline definitions from YAML and builds them through
// a Catalog.
type Loader struct {
	catalog *Catalog
	gates   *condition.Registry
	log     *logger.Logger
	strict  bool
	inst    Instrumentation

	mu    sync.Mutex
	defs  []PipelineDef
	index map[string]int
}

// New returns a loader over catalog. Without WithGates it uses an expr
// condition registry.
func New(catalog *Catalog, opts ...Option) *Loader {
	l := &Loader{
		catalog: catalog,
		log:     logger.WithComponent("loader"),
		index:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.gates == nil {
		l.gates = condition.NewRegistry(condition.NewExprFactory())
	}
	return l
}

// LoadFile reads one definition file.
func (l *Loader) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loader: reading %s: %w", path, err)
	}
	return l.LoadBytes(data, path)
}

// LoadDir reads every *.yaml and *.yml file under dir, recursively, in
// lexical path order.
func (l *Loader) LoadDir(dir string) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("loader: scanning %s: %w", dir, err)
	}
	slices.Sort(files)
	for _, f := range files {
		if err := l.LoadFile(f); err != nil {
			return err
		}
	}
	return nil
}

// LoadBytes parses one or more YAML documents. source names the input in
// errors and is recorded as PipelineDef.File. Pipeline names must be
// unique across everything the loader has read.
func (l *Loader) LoadBytes(data []byte, source string) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(l.strict)

	var defs []PipelineDef
	for {
		var doc Document
		err := dec.Decode(&doc)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.InvalidDefinition(source, err.Error()).WithCause(err)
		}
		for _, d := range doc.Pipelines {
			d.File = source
			defs = append(defs, d)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range defs {
		if i, exists := l.index[d.Name]; exists && d.Name != "" {
			return errors.InvalidDefinition(d.Name, fmt.Sprintf("pipeline defined twice (%s and %s)", l.defs[i].File, source))
		}
	}
	for _, d := range defs {
		l.index[d.Name] = len(l.defs)
		l.defs = append(l.defs, d)
	}

	l.log.Debug("Loaded pipeline definitions", logger.Fields("source", source, logger.FieldCount, len(defs)))
	return nil
}

// Definitions returns a copy of the loaded definitions in load order.
func (l *Loader) Definitions() []PipelineDef {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.defs)
}

// Validate checks the loaded definitions without building them: field
// rules, catalog types, references and reference cycles.
func (l *Loader) Validate() error {
	defs := l.Definitions()
	byName := make(map[string]PipelineDef, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	v := validation.New()
	for i, d := range defs {
		prefix := fmt.Sprintf("pipelines[%d]", i)
		if d.Name != "" {
			prefix = fmt.Sprintf("pipelines[%s]", d.Name)
		}
		v.Merge(prefix, validation.Validate(d))

		if d.EntityType != "" {
			if _, err := l.catalog.entity(d.EntityType); err != nil {
				v.AddError(prefix+".entity_type", fmt.Sprintf("unknown entity type %q", d.EntityType))
			}
		}
		labels := make([]string, 0, len(d.Processors))
		for _, p := range d.Processors {
			if p.Label() != "" {
				labels = append(labels, p.Label())
			}
		}
		v.Unique(prefix+".processors", labels)

		for j, p := range d.Processors {
			field := fmt.Sprintf("%s.processors[%d]", prefix, j)
			switch {
			case p.Reference != "":
				if _, ok := byName[p.Reference]; !ok {
					v.AddError(field+".reference", fmt.Sprintf("unknown pipeline %q", p.Reference))
				}
			case p.Type != "":
				if _, err := l.catalog.processor(p.Type, nil); err != nil {
					v.AddError(field+".type", fmt.Sprintf("unknown processor type %q", p.Type))
				}
			}
		}
		for j, h := range d.ErrorHandlers {
			if h.Type == "" {
				continue
			}
			if _, err := l.catalog.handler(h.Type, nil); err != nil {
				v.AddError(fmt.Sprintf("%s.error_handlers[%d].type", prefix, j), fmt.Sprintf("unknown handler type %q", h.Type))
			}
		}
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return findCycle(defs)
}

// findCycle walks references depth-first and reports the first cycle.
func findCycle(defs []PipelineDef) error {
	refs := make(map[string][]string, len(defs))
	for _, d := range defs {
		for _, p := range d.Processors {
			if p.Reference != "" {
				refs[d.Name] = append(refs[d.Name], p.Reference)
			}
		}
	}

	const (
		visiting = iota + 1
		done
	)
	state := make(map[string]int, len(defs))
	var path []string
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			start := slices.Index(path, name)
			return errors.ReferenceCycle(append(slices.Clone(path[start:]), name))
		case done:
			return nil
		}
		state[name] = visiting
		path = append(path, name)
		for _, ref := range refs[name] {
			if err := visit(ref); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}
	for _, d := range defs {
		if err := visit(d.Name); err != nil {
			return err
		}
	}
	return nil
}
