package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

//go:embed schema.graphqls
var sourceSchema string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: sourceSchema, BuiltIn: false})

const defaultLimit = 50

// nestedResolver loads a field that is not part of the parent record's JSON.
type nestedResolver func(ctx context.Context, r *Resolver, parent map[string]interface{}) (interface{}, error)

var nestedResolvers = map[string]nestedResolver{
	"Product.supplier": supplierOf,
	"Order.supplier":   supplierOf,
}

func supplierOf(ctx context.Context, r *Resolver, parent map[string]interface{}) (interface{}, error) {
	id, ok := toInt(parent["supplier_id"])
	if !ok {
		return nil, nil
	}
	return r.Supplier(ctx, id)
}

type executableSchema struct {
	resolver *Resolver
}

// NewExecutableSchema serves schema.graphqls from resolver. Records are projected onto the selection
// through their JSON form: a field named fooBar reads the record's foo_bar key.
func NewExecutableSchema(resolver *Resolver) graphql.ExecutableSchema {
	return &executableSchema{resolver: resolver}
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Complexity(typeName, field string, childComplexity int, args map[string]interface{}) (int, bool) {
	if typeName != "Query" {
		return 0, false
	}
	switch field {
	case "products", "stockMovements", "orders":
		limit, _ := toInt(args["limit"])
		return 1 + childComplexity*clampLimit(limit), true
	}
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	rc := graphql.GetOperationContext(ctx)
	if rc.Operation.Operation != ast.Query {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "%s operations are not supported; use the REST routes", rc.Operation.Operation))
	}

	first := true
	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false

		data := &object{}
		for _, field := range graphql.CollectFields(rc, rc.Operation.SelectionSet, []string{"Query"}) {
			data.set(field.Alias, e.rootField(ctx, rc, field))
		}
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(data); err != nil {
			return graphql.ErrorResponse(ctx, "encode response: %v", err)
		}
		return &graphql.Response{Data: bytes.TrimSpace(buf.Bytes())}
	}
}

func (e *executableSchema) rootField(ctx context.Context, rc *graphql.OperationContext, field graphql.CollectedField) interface{} {
	switch field.Name {
	case "__typename":
		return "Query"
	case "__schema", "__type":
		graphql.AddError(ctx, gqlerror.Errorf("introspection is not served"))
		return nil
	}

	ctx = graphql.WithRootFieldContext(ctx, &graphql.RootFieldContext{Object: "Query", Field: field})
	var value interface{}
	resolve := func(ctx context.Context) graphql.Marshaler {
		value = e.resolve(ctx, rc, "Query", field, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return e.query(ctx, field.Name, args)
		})
		return graphql.Null
	}
	if rc.RootResolverMiddleware != nil {
		rc.RootResolverMiddleware(ctx, resolve)
	} else {
		resolve(ctx)
	}
	return value
}

// resolve runs fn through the field middleware chain and projects its result onto field's selection.
func (e *executableSchema) resolve(ctx context.Context, rc *graphql.OperationContext, object string, field graphql.CollectedField,
	fn func(ctx context.Context, args map[string]interface{}) (interface{}, error)) interface{} {
	args := field.ArgumentMap(rc.Variables)
	fc := &graphql.FieldContext{Object: object, Field: field, Args: args, IsMethod: true, IsResolver: true}
	ctx = graphql.WithFieldContext(ctx, fc)

	next := func(ctx context.Context) (interface{}, error) {
		return fn(ctx, args)
	}
	var res interface{}
	var err error
	if rc.ResolverMiddleware != nil {
		res, err = rc.ResolverMiddleware(ctx, next)
	} else {
		res, err = next(ctx)
	}
	if err != nil {
		graphql.AddError(ctx, err)
		return nil
	}
	fc.Result = res

	plain, err := toPlain(res)
	if err != nil {
		graphql.AddError(ctx, err)
		return nil
	}
	return e.project(ctx, rc, field, plain)
}

func (e *executableSchema) query(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	limit, ok := toInt(args["limit"])
	if !ok {
		limit = defaultLimit
	}
	switch name {
	case "products":
		var supplierId *int
		if id, ok := toInt(args["supplierId"]); ok {
			supplierId = &id
		}
		return e.resolver.Products(ctx, supplierId, limit)
	case "product":
		id, _ := toInt(args["id"])
		return e.resolver.Product(ctx, id)
	case "suppliers":
		return e.resolver.Suppliers(ctx)
	case "stockMovements":
		id, _ := toInt(args["productId"])
		return e.resolver.StockMovements(ctx, id, limit)
	case "orders":
		var token *string
		if s, ok := args["checkoutToken"].(string); ok {
			token = &s
		}
		return e.resolver.Orders(ctx, token, limit)
	}
	return nil, gqlerror.Errorf("unknown field Query.%s", name)
}

// project shapes a decoded JSON value to the selection set of field.
func (e *executableSchema) project(ctx context.Context, rc *graphql.OperationContext, field graphql.CollectedField, value interface{}) interface{} {
	if value == nil && field.Definition.Type.Elem != nil && field.Definition.Type.NonNull {
		return []interface{}{}
	}
	switch v := value.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i := range v {
			idx := i
			itemCtx := graphql.WithFieldContext(ctx, &graphql.FieldContext{Index: &idx, Result: v[i]})
			out[i] = e.project(itemCtx, rc, field, v[i])
		}
		return out
	case map[string]interface{}:
		typeName := field.Definition.Type.Name()
		obj := &object{}
		for _, child := range graphql.CollectFields(rc, field.Selections, []string{typeName}) {
			if child.Name == "__typename" {
				obj.set(child.Alias, typeName)
				continue
			}
			if nested, ok := nestedResolvers[typeName+"."+child.Name]; ok {
				obj.set(child.Alias, e.resolve(ctx, rc, typeName, child, func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
					return nested(ctx, e.resolver, v)
				}))
				continue
			}
			obj.set(child.Alias, e.project(ctx, rc, child, v[jsonKey(child.Name)]))
		}
		return obj
	}
	return value
}

// toPlain turns a resolver result into maps, slices and json.Number leaves.
func toPlain(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// jsonKey maps a GraphQL field name to the record's JSON key: pricePerFullGrade becomes
// price_per_full_grade.
func jsonKey(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// object is a JSON object that keeps the selection's field order.
type object struct {
	keys   []string
	values []interface{}
}

func (o *object) set(key string, value interface{}) {
	o.keys = append(o.keys, key)
	o.values = append(o.values, value)
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		b, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
