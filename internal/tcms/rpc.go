package tcms

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// RPCSession implements Session over the server's JSON-RPC endpoint. The
// protocol is deliberately thin: every call posts {method, params} and
// decodes {result} or {error}. Retry and transport policy stay with the
// caller-supplied resty client.
type RPCSession struct {
	client *resty.Client
}

// NewRPCSession returns a session for the server at baseURL, authenticating
// with the given API token.
func NewRPCSession(baseURL, token string) *RPCSession {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Authorization", "Token "+token).
		SetHeader("Content-Type", "application/json")
	return &RPCSession{client: client}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result any       `json:"result"`
	Error  *rpcError `json:"error"`
}

func (s *RPCSession) call(ctx context.Context, method string, params any) (any, error) {
	var out rpcResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{Method: method, Params: params}).
		SetResult(&out).
		Post("/json-rpc/")
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", method, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rpc %s: server returned %s", method, resp.Status())
	}
	if out.Error != nil {
		return nil, fmt.Errorf("rpc %s: %s (code %d)", method, out.Error.Message, out.Error.Code)
	}
	return out.Result, nil
}

func asObject(v any) (Object, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return Object(m), true
}

func (s *RPCSession) FindObjects(ctx context.Context, c Class, filter Filter) ([]Object, error) {
	result, err := s.call(ctx, c.String()+".filter", []any{map[string]any(filter)})
	if err != nil {
		return nil, err
	}
	list, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("rpc %s.filter: unexpected result shape", c)
	}
	objs := make([]Object, 0, len(list))
	for _, e := range list {
		obj, ok := asObject(e)
		if !ok {
			return nil, fmt.Errorf("rpc %s.filter: unexpected element shape", c)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func (s *RPCSession) FindObject(ctx context.Context, c Class, filter Filter) (Object, error) {
	objs, err := s.FindObjects(ctx, c, filter)
	if err != nil {
		return nil, err
	}
	switch len(objs) {
	case 0:
		return nil, nil
	case 1:
		return objs[0], nil
	}
	return nil, fmt.Errorf("%w: %s matched %d objects for %v", ErrAmbiguous, c, len(objs), filter)
}

func (s *RPCSession) CreateObject(ctx context.Context, c Class, attrs Object) (Object, error) {
	result, err := s.call(ctx, c.String()+".create", []any{map[string]any(attrs)})
	if err != nil {
		return nil, err
	}
	obj, ok := asObject(result)
	if !ok {
		return nil, fmt.Errorf("rpc %s.create: unexpected result shape", c)
	}
	return obj, nil
}

func (s *RPCSession) UpdateObject(ctx context.Context, c Class, id int64, attrs Object) (Object, error) {
	result, err := s.call(ctx, c.String()+".update", []any{id, map[string]any(attrs)})
	if err != nil {
		return nil, err
	}
	obj, ok := asObject(result)
	if !ok {
		return nil, fmt.Errorf("rpc %s.update: unexpected result shape", c)
	}
	return obj, nil
}

func (s *RPCSession) CurrentUser(ctx context.Context) (Object, error) {
	result, err := s.call(ctx, "User.filter", []any{map[string]any{"is_active": true, "self": true}})
	if err != nil {
		return nil, err
	}
	if list, ok := result.([]any); ok && len(list) == 1 {
		if obj, ok := asObject(list[0]); ok {
			return obj, nil
		}
	}
	if obj, ok := asObject(result); ok {
		return obj, nil
	}
	return nil, fmt.Errorf("rpc User.filter: could not resolve current user")
}

func (s *RPCSession) UploadAttachment(ctx context.Context, c Class, id int64, filename string, content []byte) (string, error) {
	method := c.String() + ".add_attachment"
	encoded := base64.StdEncoding.EncodeToString(content)
	result, err := s.call(ctx, method, []any{id, filename, encoded})
	if err != nil {
		return "", err
	}
	if obj, ok := asObject(result); ok {
		return AsString(obj["url"]), nil
	}
	return "", nil
}
