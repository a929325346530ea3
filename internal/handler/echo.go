package handler

import (
	"sync"
	"time"

	"evalgo.org/playground/internal/event"
)

// echoTTL bounds how long an expected engine echo is remembered.
const echoTTL = 30 * time.Second

// echoes remembers the engine events a client-origin action is about to
// cause. The handler already published that change, so the matching engine
// envelope is dropped instead of being published a second time.
type echoes struct {
	mu      sync.Mutex
	pending map[string][]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func newEchoes(ttl time.Duration) *echoes {
	return &echoes{pending: map[string][]time.Time{}, ttl: ttl, now: time.Now}
}

// expect records one pending echo per key and prunes expired ones.
func (e *echoes) expect(keys []string) {
	if len(keys) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for key, deadlines := range e.pending {
		if live := unexpired(deadlines, now); len(live) > 0 {
			e.pending[key] = live
		} else {
			delete(e.pending, key)
		}
	}
	for _, key := range keys {
		e.pending[key] = append(e.pending[key], now.Add(e.ttl))
	}
}

// forget drops one pending echo per key, for actions that failed.
func (e *echoes) forget(keys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, key := range keys {
		if deadlines := e.pending[key]; len(deadlines) > 1 {
			e.pending[key] = deadlines[1:]
		} else {
			delete(e.pending, key)
		}
	}
}

// consume reports whether key was expected, using up one expectation.
func (e *echoes) consume(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	live := unexpired(e.pending[key], e.now())
	if len(live) == 0 {
		delete(e.pending, key)
		return false
	}
	if len(live) == 1 {
		delete(e.pending, key)
	} else {
		e.pending[key] = live[1:]
	}
	return true
}

func unexpired(deadlines []time.Time, now time.Time) []time.Time {
	live := deadlines[:0]
	for _, d := range deadlines {
		if now.Before(d) {
			live = append(live, d)
		}
	}
	return live
}

func echoKey(kind event.Kind, action, subject string) string {
	return string(kind) + "/" + action + "/" + subject
}

// clientEchoKeys lists the engine events env causes once applied. Network
// connect and disconnect produce one event per member; removing a container
// also reports it stopping.
func clientEchoKeys(env event.Envelope) []string {
	switch env.Kind {
	case event.KindNetwork:
		switch env.Action {
		case "create":
			return []string{echoKey(env.Kind, env.Action, env.Name)}
		case "connect", "disconnect":
			keys := []string{}
			for _, m := range members(env) {
				keys = append(keys, echoKey(env.Kind, env.Action, env.Name+"/"+m))
			}
			return keys
		case "destroy":
			return []string{echoKey(env.Kind, env.Action, event.ShortID(env.ID))}
		}
	case event.KindProxy, event.KindService:
		switch env.Action {
		case "create":
			return []string{echoKey(env.Kind, env.Action, env.Name)}
		case "destroy":
			id := event.ShortID(env.ID)
			return []string{echoKey(env.Kind, "stop", id), echoKey(env.Kind, env.Action, id)}
		}
	}
	return nil
}

// engineEchoKey is the key an engine envelope would have been recorded
// under by clientEchoKeys.
func engineEchoKey(env event.Envelope) (string, bool) {
	switch env.Kind {
	case event.KindNetwork:
		switch env.Action {
		case "create":
			return echoKey(env.Kind, env.Action, env.Name), true
		case "connect", "disconnect":
			member := env.Proxy
			if member == "" {
				member = env.Service
			}
			if member == "" {
				return "", false
			}
			return echoKey(env.Kind, env.Action, env.Name+"/"+member), true
		case "destroy":
			return echoKey(env.Kind, env.Action, event.ShortID(env.ID)), true
		}
	case event.KindProxy, event.KindService:
		switch env.Action {
		case "create":
			return echoKey(env.Kind, env.Action, env.Name), true
		case "stop", "destroy":
			return echoKey(env.Kind, env.Action, event.ShortID(env.ID)), true
		}
	}
	return "", false
}
