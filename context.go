package authcore

import "context"

type clientIPContextKey struct{}
type subjectContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine includes
// it in audit events, notably cross-environment replay rejections.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithSubject attaches the authenticated subject to ctx. The grace-period
// prober uses it to request a fresh credential; with no subject attached the
// probe conservatively reports the provider available.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func subjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	subject, _ := ctx.Value(subjectContextKey{}).(string)
	return subject
}
