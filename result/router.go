package result

// This file contains the router that splits a stream between sinks by test
// id or route code.

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/perfgo/subunit/model"
)

// Rule reports whether an event belongs to a sink and the route code it
// should carry there.
type Rule func(testID, routeCode string) (bool, string)

// MatchTestID matches events of one test.
func MatchTestID(id string) Rule {
	return func(testID, routeCode string) (bool, string) {
		return testID == id, routeCode
	}
}

// MatchRouteCodePrefix matches route codes equal to prefix or starting with
// prefix followed by "/". With consume the prefix is stripped.
func MatchRouteCodePrefix(prefix string, consume bool) Rule {
	return func(_ string, routeCode string) (bool, string) {
		if routeCode != prefix && !strings.HasPrefix(routeCode, prefix+"/") {
			return false, routeCode
		}
		if consume {
			routeCode = strings.TrimPrefix(strings.TrimPrefix(routeCode, prefix), "/")
		}
		return true, routeCode
	}
}

type route struct {
	sink Sink
	rule Rule
}

type routedTest struct {
	sink Sink
	// pending holds calls made before the test's sink was known
	pending []func(Sink) error
}

// Router sends each test to the sink of the first matching rule, or to the
// fallback. The sink of a test is chosen on its first event that carries a
// route code (its outcome or a file), so StartTest and in-test tags are
// held until then. Run boundaries and time go to every sink.
type Router struct {
	fallback Sink
	routes   []route
	sinks    []Sink
	tests    map[string]*routedTest
	current  string
}

func NewRouter(fallback Sink) *Router {
	return &Router{
		fallback: fallback,
		sinks:    []Sink{fallback},
		tests:    make(map[string]*routedTest),
	}
}

func sameSink(a, b Sink) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	return ta != nil && ta == tb && ta.Comparable() && a == b
}

// AddRule routes events matching rule to sink.
func (r *Router) AddRule(sink Sink, rule Rule) {
	r.routes = append(r.routes, route{sink: sink, rule: rule})
	for _, s := range r.sinks {
		if sameSink(s, sink) {
			return
		}
	}
	r.sinks = append(r.sinks, sink)
}

func (r *Router) resolve(testID, routeCode string) (Sink, string) {
	for _, rt := range r.routes {
		if ok, code := rt.rule(testID, routeCode); ok {
			return rt.sink, code
		}
	}
	return r.fallback, routeCode
}

func (r *Router) broadcast(call func(Sink) error) error {
	var errs []error
	for _, s := range r.sinks {
		if err := call(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bind fixes the sink of a test and replays what was held for it.
func (r *Router) bind(t *routedTest, sink Sink) error {
	if t.sink != nil {
		return nil
	}
	t.sink = sink
	pending := t.pending
	t.pending = nil
	for _, call := range pending {
		if err := call(sink); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) StartTestRun() error {
	return r.broadcast(func(s Sink) error { return s.StartTestRun() })
}

func (r *Router) StopTestRun() error {
	return r.broadcast(func(s Sink) error { return s.StopTestRun() })
}

func (r *Router) StartTest(id string) error {
	t := &routedTest{}
	t.pending = append(t.pending, func(s Sink) error { return s.StartTest(id) })
	r.tests[id] = t
	r.current = id
	return nil
}

func (r *Router) StopTest(id string) error {
	t := r.tests[id]
	delete(r.tests, id)
	if r.current == id {
		r.current = ""
	}
	if t == nil {
		sink, _ := r.resolve(id, "")
		return sink.StopTest(id)
	}
	if t.sink == nil {
		sink, _ := r.resolve(id, "")
		if err := r.bind(t, sink); err != nil {
			return err
		}
	}
	return t.sink.StopTest(id)
}

func (r *Router) AddOutcome(res model.Result) error {
	sink, code := r.resolve(res.TestID, res.RouteCode)
	res.RouteCode = code
	if t := r.tests[res.TestID]; t != nil {
		if err := r.bind(t, sink); err != nil {
			return err
		}
		return t.sink.AddOutcome(res)
	}
	return sink.AddOutcome(res)
}

func (r *Router) Tags(gained, lost []string) error {
	if t := r.tests[r.current]; t != nil {
		call := func(s Sink) error { return s.Tags(gained, lost) }
		if t.sink == nil {
			t.pending = append(t.pending, call)
			return nil
		}
		return call(t.sink)
	}
	return r.broadcast(func(s Sink) error { return s.Tags(gained, lost) })
}

func (r *Router) Progress(p model.Progress) error {
	return r.fallback.Progress(p)
}

func (r *Router) Time(t time.Time) error {
	return r.broadcast(func(s Sink) error { return s.Time(t) })
}

func (r *Router) File(f model.File) error {
	sink, code := r.resolve(f.TestID, f.RouteCode)
	f.RouteCode = code
	if t := r.tests[f.TestID]; f.TestID != "" && t != nil {
		if err := r.bind(t, sink); err != nil {
			return err
		}
		return t.sink.File(f)
	}
	return sink.File(f)
}
