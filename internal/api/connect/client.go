package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AdminClient calls the admin service.
type AdminClient struct {
	dispatch  *connect.Client[wrapperspb.StringValue, emptypb.Empty]
	getStatus *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewAdminClient creates a client for the server at baseURL.
func NewAdminClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *AdminClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithInterceptors(NewTokenInterceptor(token))}, opts...)
	return &AdminClient{
		dispatch:  connect.NewClient[wrapperspb.StringValue, emptypb.Empty](httpClient, baseURL+DispatchProcedure, opts...),
		getStatus: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+GetStatusProcedure, opts...),
	}
}

// Dispatch sends a command token.
func (c *AdminClient) Dispatch(ctx context.Context, token string) error {
	_, err := c.dispatch.CallUnary(ctx, connect.NewRequest(wrapperspb.String(token)))
	return err
}

// GetStatus fetches the board status.
func (c *AdminClient) GetStatus(ctx context.Context) (map[string]any, error) {
	resp, err := c.getStatus.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.AsMap(), nil
}
