package common

import "context"

type tenantSlugKey struct{}

// WithTenantSlug stores the store slug on the context for downstream logging.
func WithTenantSlug(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, tenantSlugKey{}, slug)
}

// TenantSlugFromContext returns the slug previously stored with WithTenantSlug.
func TenantSlugFromContext(ctx context.Context) (string, bool) {
	slug, ok := ctx.Value(tenantSlugKey{}).(string)
	if !ok || slug == "" {
		return "", false
	}
	return slug, true
}
