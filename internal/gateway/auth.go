package gateway

import (
	"context"
	"errors"
	"net/http"
)

const loginPath = "/api/auth/login"

// Login submits a password. A rejection is reported in the response, not as
// an error: non-2xx replies with a JSON body count as rejected, anything the
// client cannot decode is a transport error.
func (c *Client) Login(ctx context.Context, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, loginPath, nil, LoginRequest{Password: password}, &resp)
	if err == nil {
		return resp, nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Decoded {
		return LoginResponse{Success: false, Message: statusErr.Detail}, nil
	}
	if statusErr != nil {
		return LoginResponse{}, wrapDecode(http.MethodPost, loginPath, err)
	}
	return LoginResponse{}, err
}
