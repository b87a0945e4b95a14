package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const objectMediaType = "application/vnd.pgrst.object+json"

// QueryBuilder accumulates a PostgREST request against one table. Builders
// are single use and not safe for concurrent use.
type QueryBuilder struct {
	client  *Client
	table   string
	columns string
	filters url.Values
	orders  []string
	limit   int
	single  bool
	head    bool
	count   string // exact, planned, estimated
}

// From starts a query against table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table, filters: url.Values{}}
}

// Select sets the projection. Embedded resources use PostgREST syntax,
// e.g. "*, profiles(name, image_url)".
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq filters on column = value.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	q.filters.Add(column, fmt.Sprintf("eq.%v", value))
	return q
}

// In filters on column IN values. Values are quoted so ids containing
// reserved characters survive.
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	q.filters.Add(column, "in.("+strings.Join(quoted, ",")+")")
	return q
}

// Order appends a sort key.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit caps the number of rows returned.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Single asks for exactly one row as an object. A missing row surfaces as
// an APIError with IsNotFound() true.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// Count asks PostgREST to report the matching row total in Content-Range.
func (q *QueryBuilder) Count(method string) *QueryBuilder {
	q.count = method
	return q
}

// Head skips the body; combine with Count to fetch only the total.
func (q *QueryBuilder) Head() *QueryBuilder {
	q.head = true
	return q
}

// Execute runs the SELECT.
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	params := q.params()
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}

	method := http.MethodGet
	if q.head {
		method = http.MethodHead
	}
	req, err := q.client.newRequest(ctx, method, q.endpoint(params), nil)
	if err != nil {
		return nil, err
	}
	q.client.useSchema(req, false)
	q.prefer(req, "")
	return q.client.do(req)
}

// ExecuteInto runs the SELECT and decodes the rows into v.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, v any) error {
	resp, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

// ExecuteInsert inserts row (a struct, map or slice of them) and returns
// the stored representation.
func (q *QueryBuilder) ExecuteInsert(ctx context.Context, row any) (*Response, error) {
	params := url.Values{}
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	return q.write(ctx, http.MethodPost, params, row)
}

// ExecuteUpdate patches the filtered rows with patch.
func (q *QueryBuilder) ExecuteUpdate(ctx context.Context, patch any) (*Response, error) {
	return q.write(ctx, http.MethodPatch, q.params(), patch)
}

// ExecuteDelete removes the filtered rows and returns them.
func (q *QueryBuilder) ExecuteDelete(ctx context.Context) (*Response, error) {
	return q.write(ctx, http.MethodDelete, q.params(), nil)
}

func (q *QueryBuilder) write(ctx context.Context, method string, params url.Values, payload any) (*Response, error) {
	req, err := q.client.newRequest(ctx, method, q.endpoint(params), payload)
	if err != nil {
		return nil, err
	}
	q.client.useSchema(req, true)
	q.prefer(req, "return=representation")
	return q.client.do(req)
}

func (q *QueryBuilder) prefer(req *http.Request, ret string) {
	var prefs []string
	if ret != "" {
		prefs = append(prefs, ret)
	}
	if q.count != "" {
		prefs = append(prefs, "count="+q.count)
	}
	if len(prefs) > 0 {
		req.Header.Set("Prefer", strings.Join(prefs, ","))
	}
	if q.single {
		req.Header.Set("Accept", objectMediaType)
	}
}

// params copies the filters and projection into a fresh query string.
func (q *QueryBuilder) params() url.Values {
	params := url.Values{}
	for k, vs := range q.filters {
		params[k] = append([]string(nil), vs...)
	}
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	return params
}

func (q *QueryBuilder) endpoint(params url.Values) string {
	target := q.client.baseURL + "/rest/v1/" + url.PathEscape(q.table)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return target
}

// RPC calls the Postgres function fn with named params.
func (c *Client) RPC(ctx context.Context, fn string, params any) (*Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/rest/v1/rpc/"+url.PathEscape(fn), params)
	if err != nil {
		return nil, err
	}
	c.useSchema(req, true)
	return c.do(req)
}
