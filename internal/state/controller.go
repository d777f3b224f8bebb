package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Operation es la llamada asíncrona que envuelve un Controller
type Operation[In, Out any] func(ctx context.Context, in In) (Out, error)

// Recorder recibe las transiciones para métricas
type Recorder interface {
	Transition(controller string, to Kind)
	Completed(controller string, outcome Kind, elapsed time.Duration)
}

// Option configura un Controller
type Option func(*options)

type options struct {
	isEmpty  func(any) bool
	timeout  time.Duration
	recorder Recorder
	logger   *logrus.Logger
}

// WithEmpty publica Empty en lugar de Success cuando el resultado cumple el predicado
func WithEmpty[Out any](isEmpty func(Out) bool) Option {
	return func(o *options) {
		o.isEmpty = func(v any) bool {
			out, ok := v.(Out)
			return ok && isEmpty(out)
		}
	}
}

// WithTimeout limita la duración de cada operación
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithRecorder registra transiciones y duraciones
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithLogger define el logger del controlador
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Controller maneja una operación asíncrona y proyecta su resultado en un State.
//
// Un Trigger mientras otra operación está en curso cancela la anterior y
// descarta su resultado. Reset también descarta la operación en curso.
// Todas las transiciones se publican bajo el mismo lock, de modo que todos
// los suscriptores observan el mismo orden.
type Controller[In, Out any] struct {
	name string
	op   Operation[In, Out]
	opts options

	mu          sync.Mutex
	current     State[Out]
	generation  uint64
	cancel      context.CancelFunc
	subscribers map[uint64]*subscriber[Out]
	nextSub     uint64
	closed      bool

	inflight sync.WaitGroup
}

// New crea un controlador en estado Idle
func New[In, Out any](name string, op Operation[In, Out], opts ...Option) *Controller[In, Out] {
	c := &Controller[In, Out]{
		name:        name,
		op:          op,
		current:     Idle[Out](),
		subscribers: make(map[uint64]*subscriber[Out]),
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	if c.opts.logger == nil {
		c.opts.logger = logrus.StandardLogger()
	}
	return c
}

// Name retorna el nombre del controlador
func (c *Controller[In, Out]) Name() string {
	return c.name
}

// Trigger publica Loading y ejecuta la operación en segundo plano
func (c *Controller[In, Out]) Trigger(in In) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.cancelLocked()
	c.generation++
	gen := c.generation

	var ctx context.Context
	var cancel context.CancelFunc
	if c.opts.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.opts.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancel = cancel

	c.publishLocked(Loading[Out]())
	c.inflight.Add(1)
	c.mu.Unlock()

	go c.run(ctx, cancel, gen, in)
}

// Current retorna el último estado publicado
func (c *Controller[In, Out]) Current() State[Out] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Reset vuelve a Idle y suprime la operación en curso
func (c *Controller[In, Out]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.cancelLocked()
	c.generation++
	c.publishLocked(Idle[Out]())
}

// Subscribe entrega el estado actual y luego cada transición en orden.
// La función retornada cancela la suscripción y cierra el canal sin
// entregar lo pendiente. Tras Close el canal recibe lo ya publicado y se
// cierra; el lector debe vaciarlo o cancelar.
func (c *Controller[In, Out]) Subscribe() (<-chan State[Out], func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := newSubscriber[Out]()
	if c.closed {
		sub.finish()
		return sub.out, sub.close
	}

	sub.push(c.current)
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = sub

	return sub.out, func() { c.unsubscribe(id, sub) }
}

// Wait bloquea hasta que no haya operaciones en curso
func (c *Controller[In, Out]) Wait() {
	c.inflight.Wait()
}

// Close cancela la operación en curso y cierra todas las suscripciones
// una vez entregados los estados ya publicados
func (c *Controller[In, Out]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.closed = true
	c.cancelLocked()
	c.generation++
	for id, sub := range c.subscribers {
		sub.finish()
		delete(c.subscribers, id)
	}
}

func (c *Controller[In, Out]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, in In) {
	defer c.inflight.Done()
	defer cancel()

	start := time.Now()
	result, err := c.invoke(ctx, in)
	next := c.project(result, err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed {
		c.opts.logger.WithFields(logrus.Fields{
			"controller": c.name,
			"outcome":    next.Kind.String(),
		}).Debug("Discarding superseded operation result")
		return
	}

	c.cancel = nil
	c.publishLocked(next)

	if next.Kind == KindError {
		c.opts.logger.WithFields(logrus.Fields{
			"controller": c.name,
			"message":    next.Message,
		}).Warn("Operation failed")
	}
	if c.opts.recorder != nil {
		c.opts.recorder.Completed(c.name, next.Kind, time.Since(start))
	}
}

// invoke ejecuta la operación convirtiendo un panic en error
func (c *Controller[In, Out]) invoke(ctx context.Context, in In) (result Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return c.op(ctx, in)
}

func (c *Controller[In, Out]) project(result Out, err error) State[Out] {
	if err != nil {
		return Failure[Out](err.Error())
	}
	if c.opts.isEmpty != nil && c.opts.isEmpty(result) {
		return Empty[Out]()
	}
	return Success(result)
}

func (c *Controller[In, Out]) publishLocked(s State[Out]) {
	c.current = s
	for _, sub := range c.subscribers {
		sub.push(s)
	}

	c.opts.logger.WithFields(logrus.Fields{
		"controller": c.name,
		"state":      s.Kind.String(),
	}).Debug("State transition")

	if c.opts.recorder != nil {
		c.opts.recorder.Transition(c.name, s.Kind)
	}
}

func (c *Controller[In, Out]) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller[In, Out]) unsubscribe(id uint64, sub *subscriber[Out]) {
	c.mu.Lock()
	delete(c.subscribers, id)
	c.mu.Unlock()

	sub.close()
}
