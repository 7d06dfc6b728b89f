package sfzcore

import (
	"fmt"
	"strconv"
	"strings"
)

// Control dispatch implements the OSC-style path/typetag protocol from
// spec.md §6: a slash-separated path plus a printf-style typetag
// string address one control. Paths are compiled once at setup into a
// hash-keyed table (spec.md §9 Design Notes: "precompute a hash per
// (pattern, signature) at load time") so dispatch at control-rate
// never walks a tree or does string formatting in the hot path.

// ControlArg is one decoded OSC-style argument.
type ControlArg struct {
	Int    int64
	Float  float64
	String string
	Kind   byte // 'i', 'f', 's'
}

// ControlHandler executes a dispatched control message against the
// engine state it closes over.
type ControlHandler func(args []ControlArg) error

type compiledRoute struct {
	key     string // path + "\x00" + typetag, precomputed once
	handler ControlHandler
	typetag string
}

// ControlDispatcher is the compiled path table (spec.md §9). Routes
// are registered at setup (region load / engine construction) and
// never mutated at render time.
type ControlDispatcher struct {
	routes map[string]compiledRoute
}

func NewControlDispatcher() *ControlDispatcher {
	return &ControlDispatcher{routes: make(map[string]compiledRoute)}
}

// routeKey builds the route-table key for a path+typetag pair. Register
// and Dispatch both use it, so a message matches only a handler
// registered with the same path and typetag.
func routeKey(path, typetag string) string {
	return path + "\x00" + typetag
}

// Register binds a path+typetag signature to a handler.
func (d *ControlDispatcher) Register(path, typetag string, handler ControlHandler) {
	key := routeKey(path, typetag)
	d.routes[key] = compiledRoute{key: key, handler: handler, typetag: typetag}
}

// Dispatch parses a raw "/path arg1 arg2 ..." message, infers a
// typetag from the argument tokens, and invokes the matching
// registered handler (spec.md §6 "typetag inference: an unquoted
// numeral with a decimal point is 'f', otherwise 'i' if it parses as
// an integer, else 's'").
func (d *ControlDispatcher) Dispatch(message string) error {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return fmt.Errorf("empty control message")
	}
	path := fields[0]
	argTokens := fields[1:]

	args := make([]ControlArg, len(argTokens))
	var typetag strings.Builder
	for i, tok := range argTokens {
		arg, kind := parseControlArg(tok)
		args[i] = arg
		typetag.WriteByte(kind)
	}

	key := routeKey(path, typetag.String())
	route, ok := d.routes[key]
	if !ok {
		return fmt.Errorf("no control route for %s %q", path, typetag.String())
	}
	return route.handler(args)
}

func parseControlArg(tok string) (ControlArg, byte) {
	if strings.Contains(tok, ".") {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return ControlArg{Float: f, Kind: 'f'}, 'f'
		}
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return ControlArg{Int: n, Kind: 'i'}, 'i'
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return ControlArg{Float: f, Kind: 'f'}, 'f'
	}
	return ControlArg{String: tok, Kind: 's'}, 's'
}
