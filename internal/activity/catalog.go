package activity

import (
	"context"
	"fmt"
)

// Convenience wrappers for the operations that feed the audit trail. Business
// code calls these so descriptions and detail keys stay uniform across the
// codebase.

func (s *Service) LogIdentityCreated(ctx context.Context, did string, opts ...LogOption) (string, error) {
	opts = append(opts, WithUserDID(did))
	return s.LogActivity(ctx, TypeIdentityCreated, "New identity created", opts...)
}

func (s *Service) LogIdentityImported(ctx context.Context, did string, opts ...LogOption) (string, error) {
	opts = append(opts, WithUserDID(did))
	return s.LogActivity(ctx, TypeIdentityImported, "Identity imported from backup", opts...)
}

func (s *Service) LogIdentityExported(ctx context.Context, did string, opts ...LogOption) (string, error) {
	opts = append(opts, WithUserDID(did))
	return s.LogActivity(ctx, TypeIdentityExported, "Identity exported", opts...)
}

func (s *Service) LogDocumentCreated(ctx context.Context, title string, opts ...LogOption) (string, error) {
	opts = append(opts, WithDetails(map[string]any{"title": title}))
	return s.LogActivity(ctx, TypeDocumentCreated, fmt.Sprintf("Created document %q", title), opts...)
}

func (s *Service) LogDocumentRead(ctx context.Context, title string, opts ...LogOption) (string, error) {
	opts = append(opts, WithDetails(map[string]any{"title": title}))
	return s.LogActivity(ctx, TypeDocumentRead, fmt.Sprintf("Viewed document %q", title), opts...)
}

func (s *Service) LogDocumentDeleted(ctx context.Context, title string, opts ...LogOption) (string, error) {
	opts = append(opts, WithDetails(map[string]any{"title": title}))
	return s.LogActivity(ctx, TypeDocumentDeleted, fmt.Sprintf("Deleted document %q", title), opts...)
}

func (s *Service) LogPermissionGranted(ctx context.Context, grantee string, opts ...LogOption) (string, error) {
	opts = append(opts, WithDetails(map[string]any{"grantee": grantee}))
	return s.LogActivity(ctx, TypePermissionGranted, fmt.Sprintf("Granted access to %s", grantee), opts...)
}

func (s *Service) LogPermissionRevoked(ctx context.Context, grantee string, opts ...LogOption) (string, error) {
	opts = append(opts, WithDetails(map[string]any{"grantee": grantee}))
	return s.LogActivity(ctx, TypePermissionRevoked, fmt.Sprintf("Revoked access from %s", grantee), opts...)
}

func (s *Service) LogAutofillExecuted(ctx context.Context, origin string, opts ...LogOption) (string, error) {
	opts = append(opts, WithDetails(map[string]any{"origin": origin}))
	return s.LogActivity(ctx, TypeAutofillExecuted, fmt.Sprintf("Autofilled credentials on %s", origin), opts...)
}

func (s *Service) LogSecurityChanged(ctx context.Context, change string, opts ...LogOption) (string, error) {
	return s.LogActivity(ctx, TypeSecurityChanged, change, opts...)
}
