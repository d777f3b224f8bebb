package state

import "sync"

// subscriber entrega estados en orden sin descartar ninguno; la cola no
// tiene límite para que un lector lento nunca bloquee al controlador.
// finish cierra out después de entregar lo encolado; close lo cierra de
// inmediato y descarta lo pendiente.
type subscriber[T any] struct {
	out  chan State[T]
	wake chan struct{}
	done chan struct{}

	mu       sync.Mutex
	queue    []State[T]
	finished bool
	once     sync.Once
}

func newSubscriber[T any]() *subscriber[T] {
	s := &subscriber[T]{
		out:  make(chan State[T]),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *subscriber[T]) push(st State[T]) {
	s.mu.Lock()
	s.queue = append(s.queue, st)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber[T]) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		finished := s.finished
		s.mu.Unlock()

		for _, st := range pending {
			select {
			case s.out <- st:
			case <-s.done:
				return
			}
		}

		// tras finish no llegan más push, la cola ya quedó vacía
		if finished {
			return
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
