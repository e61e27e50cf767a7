package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/xerrors"
)

// Condition is a class of failed attempt that may be retried.
type Condition uint

const (
	// ServerError is any 5xx response.
	ServerError Condition = 1 << iota
	// GatewayError is 502, 503 or 504, what a proxy in front of a restarting receiver returns.
	GatewayError
	// TooManyRequests is 429 from rate limited endpoints such as the egress IP service.
	TooManyRequests
	// Conflict is 409.
	Conflict
	// ConnectFailure is a refused or reset connection, or one closed before a response.
	ConnectFailure
	// AttemptTimeout is an attempt that ran past Transport.PerTryTimeout.
	AttemptTimeout
)

var conditionNames = []struct {
	condition Condition
	name      string
}{
	{ServerError, "5xx"},
	{GatewayError, "gateway-error"},
	{TooManyRequests, "too-many-requests"},
	{Conflict, "conflict"},
	{ConnectFailure, "connect-failure"},
	{AttemptTimeout, "attempt-timeout"},
}

type On struct {
	conditions  Condition
	statusCodes []int
}

func NewOn(conditions Condition, statusCodes ...int) *On {
	return &On{
		conditions:  conditions,
		statusCodes: statusCodes,
	}
}

// NewDefaultRetryOn retries what a callback receiver or the egress probe returns while briefly
// unavailable. Plain 500s are left alone since the receiver most likely rejected the payload.
func NewDefaultRetryOn() *On {
	return NewOn(GatewayError | TooManyRequests | ConnectFailure | AttemptTimeout)
}

// ParseOn reads a comma separated list of condition names and status codes,
// e.g. "gateway-error,attempt-timeout,408". An empty string yields NewDefaultRetryOn.
func ParseOn(s string) (*On, error) {
	if strings.TrimSpace(s) == "" {
		return NewDefaultRetryOn(), nil
	}

	o := &On{}
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if c, ok := conditionByName(token); ok {
			o.conditions |= c
			continue
		}

		statusCode, err := strconv.Atoi(token)
		if err != nil || statusCode < 100 || statusCode > 599 {
			return nil, xerrors.Errorf("invalid retry condition %q", token)
		}
		o.statusCodes = append(o.statusCodes, statusCode)
	}
	return o, nil
}

func conditionByName(name string) (Condition, bool) {
	for _, c := range conditionNames {
		if c.name == name {
			return c.condition, true
		}
	}
	return 0, false
}

func (o *On) String() string {
	var tokens []string
	for _, c := range conditionNames {
		if o.has(c.condition) {
			tokens = append(tokens, c.name)
		}
	}
	for _, statusCode := range o.statusCodes {
		tokens = append(tokens, strconv.Itoa(statusCode))
	}
	return strings.Join(tokens, ",")
}

func (o *On) has(c Condition) bool {
	return o.conditions&c != 0
}

func (o *On) CheckResponse(response *http.Response) bool {
	code := response.StatusCode
	switch {
	case o.has(ServerError) && code >= 500 && code < 600,
		o.has(GatewayError) && code >= 502 && code < 505,
		o.has(TooManyRequests) && code == http.StatusTooManyRequests,
		o.has(Conflict) && code == http.StatusConflict:
		return true
	}
	return slices.Contains(o.statusCodes, code)
}

func (o *On) CheckError(err error) bool {
	switch {
	case errors.Is(err, ErrAttemptTimeout):
		return o.has(AttemptTimeout)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case isConnectFailure(err):
		return o.has(ConnectFailure)
	}
	return false
}

func isConnectFailure(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opError *net.OpError
	return errors.As(err, &opError) && opError.Op == "dial"
}
