package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/diwise/levelstore/pkg/document"
	"github.com/diwise/levelstore/pkg/graph/codec"
	"github.com/diwise/levelstore/pkg/graph/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// DefaultTransformAttribute names the matrix attribute that makes an object spatial
const DefaultTransformAttribute string = "Mat"

var tracer = otel.Tracer("levelstore/graph")

// Store is an indexed, linked collection of objects backed by one document. Every
// store is paired with a companion store that pointers may also resolve into.
type Store struct {
	name          string
	objects       map[string]*Object
	order         []*Object
	spatial       map[string]*Object
	doc           *document.Document
	companion     *Store
	linked        bool
	registry      *codec.Registry
	transformAttr string
}

type StoreOption func(*Store)

func WithName(name string) StoreOption {
	return func(s *Store) {
		s.name = name
	}
}

func WithCodecs(r *codec.Registry) StoreOption {
	return func(s *Store) {
		s.registry = r
	}
}

func WithTransformAttribute(name string) StoreOption {
	return func(s *Store) {
		s.transformAttr = name
	}
}

func newStore(opts ...StoreOption) *Store {
	s := &Store{
		name:          "store",
		objects:       map[string]*Object{},
		spatial:       map[string]*Object{},
		doc:           document.New(),
		registry:      codec.Default,
		transformAttr: DefaultTransformAttribute,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RawStore is a store whose pointers have not been resolved. It turns into a Store
// by linking it with its companion, after which it should no longer be used.
type RawStore struct {
	s *Store
}

func NewRawStore(opts ...StoreOption) *RawStore {
	return &RawStore{s: newStore(opts...)}
}

// Load parses a document and registers one raw object per entity node
func Load(ctx context.Context, r io.Reader, opts ...StoreOption) (_ *RawStore, err error) {
	ctx, span := tracer.Start(ctx, "load")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	s := newStore(opts...)

	s.doc, err = document.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	for _, node := range s.doc.Entities {
		var obj *Object

		obj, err = newObject(node, s.registry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}

		if err = s.add(obj); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}

	logging.GetFromContext(ctx).Debug("document loaded",
		slog.String("store", s.name),
		slog.Int("objects", len(s.order)),
		slog.Int("spatial", len(s.spatial)),
	)

	return &RawStore{s: s}, nil
}

func (rs *RawStore) Name() string {
	return rs.s.name
}

// AddObject registers obj without resolving its pointers
func (rs *RawStore) AddObject(obj *Object) error {
	if err := rs.s.add(obj); err != nil {
		return err
	}

	rs.s.doc.Append(obj.node)
	return nil
}

func (rs *RawStore) Get(id string) (*Object, bool) {
	return rs.s.Get(id)
}

func (rs *RawStore) Len() int {
	return rs.s.Len()
}

func (rs *RawStore) Objects() []*Object {
	return rs.s.Objects()
}

// Link resolves the pointers of both stores against each other and pairs them as
// companions. If linking fails neither store should be used again.
func Link(ctx context.Context, primary, companion *RawStore) (_ *Store, _ *Store, err error) {
	ctx, span := tracer.Start(ctx, "link")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if primary == nil || companion == nil || primary.s == companion.s {
		err = errors.NewUnsupportedOperationError("linking requires two distinct stores")
		return nil, nil, err
	}

	p, c := primary.s, companion.s

	for _, o := range p.order {
		if c.contains(o.id) {
			err = errors.NewDuplicateIDError(o.id)
			return nil, nil, err
		}
	}

	if err = p.ResolvePointers(c); err != nil {
		return nil, nil, err
	}

	if err = c.ResolvePointers(p); err != nil {
		return nil, nil, err
	}

	logging.GetFromContext(ctx).Debug("stores linked",
		slog.String("primary", p.name), slog.Int("primaryObjects", p.Len()),
		slog.String("companion", c.name), slog.Int("companionObjects", c.Len()),
	)

	return p, c, nil
}

// ResolvePointers links every object in s against s and companion
func (s *Store) ResolvePointers(companion *Store) error {
	if companion != nil {
		s.companion = companion
	}

	for _, o := range s.order {
		if err := o.ResolvePointers(s, s.companion); err != nil {
			return err
		}
	}

	s.linked = true

	return nil
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) Companion() *Store {
	return s.companion
}

func (s *Store) Linked() bool {
	return s.linked
}

func (s *Store) Codecs() *codec.Registry {
	return s.registry
}

func (s *Store) lookup(id string) *Object {
	if s == nil {
		return nil
	}
	return s.objects[id]
}

func (s *Store) contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.objects[id]
	return ok
}

func (s *Store) owns(obj *Object) bool {
	return s != nil && s.objects[obj.id] == obj
}

func (s *Store) add(obj *Object) error {
	if obj.state == Deleted {
		return errors.NewDeletedError(obj.id)
	}

	if obj.store != nil && obj.store != s {
		return errors.NewUnsupportedOperationError(fmt.Sprintf("object %s belongs to %s", obj.id, obj.store.name))
	}

	if s.contains(obj.id) {
		return errors.NewDuplicateIDError(obj.id)
	}

	if obj.registry == nil {
		obj.registry = s.registry
	}

	obj.store = s
	s.objects[obj.id] = obj
	s.order = append(s.order, obj)
	s.reindex(obj)

	return nil
}

// reindex keeps the spatial index in sync with the attributes of obj
func (s *Store) reindex(obj *Object) {
	if !obj.declaresTransform(s.transformAttr) {
		delete(s.spatial, obj.id)
		return
	}

	if obj.Transform() == nil {
		panic(fmt.Sprintf("spatial object %s has no usable %s transform", obj, s.transformAttr))
	}

	s.spatial[obj.id] = obj
}

func (s *Store) detach(obj *Object) {
	delete(s.objects, obj.id)
	delete(s.spatial, obj.id)
	s.order = slices.DeleteFunc(s.order, func(o *Object) bool { return o == obj })
	obj.store = nil
}

// AddObject registers obj without resolving its pointers
func (s *Store) AddObject(obj *Object) error {
	if err := s.add(obj); err != nil {
		return err
	}

	s.doc.Append(obj.node)
	return nil
}

// AddObjectNew registers a newly created object. Its id must be unused in both this
// store and its companion, and on a linked store its pointers are resolved at once.
// If resolution fails the object is not added.
func (s *Store) AddObjectNew(obj *Object) error {
	if s.companion.contains(obj.id) {
		return errors.NewDuplicateIDError(obj.id)
	}

	if err := s.add(obj); err != nil {
		return err
	}

	if s.linked && obj.state == Raw {
		if err := obj.ResolvePointers(s, s.companion); err != nil {
			s.detach(obj)
			return err
		}
	}

	if err := obj.sync(); err != nil {
		s.detach(obj)
		return err
	}

	s.doc.Append(obj.node)

	return nil
}

// NewID returns a numeric id that is unused in this store and its companion
func (s *Store) NewID() string {
	for {
		id := strconv.FormatUint(uint64(uuid.New().ID()), 10)
		if id == document.NullID {
			continue
		}

		if !s.contains(id) && !s.companion.contains(id) {
			return id
		}
	}
}

func (s *Store) Get(id string) (*Object, bool) {
	obj, ok := s.objects[id]
	return obj, ok
}

func (s *Store) Len() int {
	return len(s.order)
}

// Objects returns every object in insertion order
func (s *Store) Objects() []*Object {
	return slices.Clone(s.order)
}

func (s *Store) ObjectsOfType(typeTag string) []*Object {
	result := []*Object{}
	for _, o := range s.order {
		if o.typeTag == typeTag {
			result = append(result, o)
		}
	}
	return result
}

// SpatialObjects returns the objects that carry a transform, in insertion order
func (s *Store) SpatialObjects() []*Object {
	result := make([]*Object, 0, len(s.spatial))
	for _, o := range s.order {
		if _, ok := s.spatial[o.id]; ok {
			result = append(result, o)
		}
	}
	return result
}

// Write serializes the document backing s, including every change made to its objects
func (s *Store) Write(w io.Writer) error {
	for _, o := range s.order {
		if err := o.sync(); err != nil {
			return err
		}
	}

	return s.doc.Write(w)
}
