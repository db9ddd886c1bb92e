// Package earthengine builds deferred Earth Engine computations and
// evaluates them against a backend.
//
// Handles such as Image or ImageCollection only accumulate steps; nothing is
// sent anywhere until an Evaluator computes a result.
package earthengine

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync/atomic"
)

// Node is one vertex of a deferred computation graph.
type Node interface {
	isNode()
}

// Constant is an inline JSON value.
type Constant struct {
	Value any
}

// Invocation calls a backend algorithm by name.
type Invocation struct {
	Function  string
	Arguments map[string]Node
}

// ArgumentRef refers to a parameter of the enclosing FunctionDef.
type ArgumentRef struct {
	Name string
}

// FunctionDef is a lambda, used as the algorithm of Collection.map.
type FunctionDef struct {
	ArgumentNames []string
	Body          Node
}

type Array struct {
	Items []Node
}

type Dict struct {
	Items map[string]Node
}

func (Constant) isNode()    {}
func (Invocation) isNode()  {}
func (ArgumentRef) isNode() {}
func (FunctionDef) isNode() {}
func (Array) isNode()       {}
func (Dict) isNode()        {}

// Computable is anything that can be handed to an Evaluator.
type Computable interface {
	Expr() Node
}

func call(function string, args map[string]Node) Node {
	return Invocation{Function: function, Arguments: args}
}

func constant(v any) Node {
	return Constant{Value: v}
}

func stringList(values []string) Node {
	items := make([]Node, len(values))
	for i, v := range values {
		items[i] = constant(v)
	}
	return Array{Items: items}
}

func numberList[T int | float64](values []T) Node {
	items := make([]Node, len(values))
	for i, v := range values {
		items[i] = constant(v)
	}
	return Array{Items: items}
}

// ValueNode is the wire form of a node.
type ValueNode map[string]any

// Expression is the serialised graph accepted by value:compute and maps.
type Expression struct {
	Result string               `json:"result"`
	Values map[string]ValueNode `json:"values"`
}

type encoder struct {
	values map[string]ValueNode
	ids    map[string]string
}

// Encode serialises the graph rooted at n. Identical invocations are emitted
// once and referenced by id; arguments are visited in key order so the same
// graph always yields the same ids.
func Encode(n Node) (Expression, error) {
	e := &encoder{values: map[string]ValueNode{}, ids: map[string]string{}}
	id, err := e.ref(n)
	if err != nil {
		return Expression{}, err
	}
	return Expression{Result: id, Values: e.values}, nil
}

func (e *encoder) ref(n Node) (string, error) {
	v, err := e.encode(n)
	if err != nil {
		return "", err
	}
	if id, ok := v["valueReference"].(string); ok {
		return id, nil
	}
	return e.intern(v)
}

func (e *encoder) intern(v ValueNode) (string, error) {
	key, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode value node: %w", err)
	}
	if id, ok := e.ids[string(key)]; ok {
		return id, nil
	}
	id := strconv.Itoa(len(e.values))
	e.values[id] = v
	e.ids[string(key)] = id
	return id, nil
}

func (e *encoder) encode(n Node) (ValueNode, error) {
	switch v := n.(type) {
	case Constant:
		return ValueNode{"constantValue": v.Value}, nil
	case ArgumentRef:
		return ValueNode{"argumentReference": v.Name}, nil
	case Array:
		items := make([]ValueNode, len(v.Items))
		for i, item := range v.Items {
			encoded, err := e.encode(item)
			if err != nil {
				return nil, err
			}
			items[i] = encoded
		}
		return ValueNode{"arrayValue": map[string]any{"values": items}}, nil
	case Dict:
		items := make(map[string]ValueNode, len(v.Items))
		for _, k := range slices.Sorted(maps.Keys(v.Items)) {
			encoded, err := e.encode(v.Items[k])
			if err != nil {
				return nil, err
			}
			items[k] = encoded
		}
		return ValueNode{"dictionaryValue": map[string]any{"values": items}}, nil
	case FunctionDef:
		body, err := e.ref(v.Body)
		if err != nil {
			return nil, err
		}
		return ValueNode{"functionDefinitionValue": map[string]any{
			"argumentNames": v.ArgumentNames,
			"body":          body,
		}}, nil
	case Invocation:
		args := make(map[string]ValueNode, len(v.Arguments))
		for _, k := range slices.Sorted(maps.Keys(v.Arguments)) {
			arg := v.Arguments[k]
			if arg == nil {
				continue
			}
			encoded, err := e.encode(arg)
			if err != nil {
				return nil, err
			}
			args[k] = encoded
		}
		id, err := e.intern(ValueNode{"functionInvocationValue": map[string]any{
			"functionName": v.Function,
			"arguments":    args,
		}})
		if err != nil {
			return nil, err
		}
		return ValueNode{"valueReference": id}, nil
	case nil:
		return ValueNode{"constantValue": nil}, nil
	default:
		return nil, fmt.Errorf("unsupported node type %T", n)
	}
}

var placeholderSeq atomic.Int64

// lambda builds a one-argument FunctionDef. The argument is named after the
// nesting depth of the body so equal lambdas encode identically.
func lambda(body func(arg Node) Node) FunctionDef {
	placeholder := fmt.Sprintf("__placeholder_%d", placeholderSeq.Add(1))
	built := body(ArgumentRef{Name: placeholder})
	name := fmt.Sprintf("_MAPPING_VAR_%d_0", lambdaDepth(built))
	return FunctionDef{ArgumentNames: []string{name}, Body: substitute(built, placeholder, name)}
}

func lambdaDepth(n Node) int {
	depth := 0
	switch v := n.(type) {
	case FunctionDef:
		return lambdaDepth(v.Body) + 1
	case Invocation:
		for _, arg := range v.Arguments {
			depth = max(depth, lambdaDepth(arg))
		}
	case Array:
		for _, item := range v.Items {
			depth = max(depth, lambdaDepth(item))
		}
	case Dict:
		for _, item := range v.Items {
			depth = max(depth, lambdaDepth(item))
		}
	}
	return depth
}

func substitute(n Node, from, to string) Node {
	switch v := n.(type) {
	case ArgumentRef:
		if v.Name == from {
			return ArgumentRef{Name: to}
		}
		return v
	case FunctionDef:
		return FunctionDef{ArgumentNames: v.ArgumentNames, Body: substitute(v.Body, from, to)}
	case Invocation:
		args := make(map[string]Node, len(v.Arguments))
		for k, arg := range v.Arguments {
			args[k] = substitute(arg, from, to)
		}
		return Invocation{Function: v.Function, Arguments: args}
	case Array:
		items := make([]Node, len(v.Items))
		for i, item := range v.Items {
			items[i] = substitute(item, from, to)
		}
		return Array{Items: items}
	case Dict:
		items := make(map[string]Node, len(v.Items))
		for k, item := range v.Items {
			items[k] = substitute(item, from, to)
		}
		return Dict{Items: items}
	default:
		return n
	}
}
